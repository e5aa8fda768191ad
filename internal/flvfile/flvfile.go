// On-disk FLV container I/O: the external collaborator the core's Sink/
// Source interfaces are specified against, but don't implement themselves.
//
// Grounded on the teacher's createFlvTag (flv.go) for the tag-plus-previous-
// tag-size wire shape, reusing rtmp.EncodeTag/DecodeTag for the tag bodies
// themselves and adding the standard 9-byte FLV file header that the teacher
// never had to write (it only ever relayed tags to other connections).
package flvfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/AgustinSRG/rtmp-publish-core/rtmp"
)

var fileHeader = []byte{'F', 'L', 'V', 0x01, 0x05, 0x00, 0x00, 0x00, 0x09}

// CreateSink opens (or creates) path and returns a Sink-shaped writer that
// appends tags as a valid FLV file: header, then each tag framed with its
// trailing previous-tag-size field.
func CreateSink(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(fileHeader); err != nil {
		f.Close()
		return nil, err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(0)); err != nil {
		f.Close()
		return nil, err
	}
	return &Sink{f: f, w: w}, nil
}

// Sink implements the server package's Sink interface against an FLV file.
type Sink struct {
	f *os.File
	w *bufio.Writer
}

// AppendTag writes one tag to the file.
func (s *Sink) AppendTag(tag rtmp.Tag) error {
	_, err := s.w.Write(rtmp.EncodeTag(tag))
	return err
}

// Close flushes buffered data and closes the file.
func (s *Sink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// OpenSource opens path for reading and returns a Source-shaped reader that
// yields the tags it contains in order, for republishing a recorded file.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	header := make([]byte, 9)
	if _, err := io.ReadFull(r, header); err != nil {
		f.Close()
		return nil, err
	}
	var prevTagSize [4]byte
	if _, err := io.ReadFull(r, prevTagSize[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &Source{f: f, r: r}, nil
}

// Source implements the client package's Source interface against an FLV
// file.
type Source struct {
	f *os.File
	r *bufio.Reader
}

// NextTag reads the next tag from the file. It reports ok=false, err=nil at
// end of file, matching the client package's clean-exhaustion convention.
func (s *Source) NextTag() (rtmp.Tag, bool, error) {
	header := make([]byte, 11)
	if _, err := io.ReadFull(s.r, header); err != nil {
		if err == io.EOF {
			return rtmp.Tag{}, false, nil
		}
		return rtmp.Tag{}, false, err
	}

	length := uint32(header[1])<<16 | uint32(header[2])<<8 | uint32(header[3])
	rest := make([]byte, length+4) // body + trailing previous-tag-size
	if _, err := io.ReadFull(s.r, rest); err != nil {
		return rtmp.Tag{}, false, err
	}

	tag, _, err := rtmp.DecodeTag(append(header, rest...))
	if err != nil {
		return rtmp.Tag{}, false, err
	}
	return tag, true, nil
}

// Close closes the underlying file.
func (s *Source) Close() error {
	return s.f.Close()
}
