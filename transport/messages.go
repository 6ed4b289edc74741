// Package transport is the in-process pub/sub boundary of the node. It
// carries inbound camera frames and outbound detection results between the
// node and its collaborators with queue-depth-1, newest-overwrites-oldest
// delivery per subscription.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Header tags every message with a timestamp, a monotonically increasing
// sequence number, the coordinate frame the data is expressed in, and a
// unique id.
type Header struct {
	Seq     uint64
	Stamp   time.Time
	FrameID string
	ID      uuid.UUID
}

// MessageHeader returns the header; embedding Header gives every message
// type this accessor.
func (h Header) MessageHeader() Header { return h }

// Headed is any message carrying a Header.
type Headed interface {
	MessageHeader() Header
}

// RawFrame is an uncompressed camera frame. Data is packed 3-channel BGR,
// row-major, so len(Data) must equal Width*Height*3.
type RawFrame struct {
	Header
	Width, Height int
	Data          []byte
}

// CompressedFrame is an encoded camera frame (jpeg, png, or ppm payload).
type CompressedFrame struct {
	Header
	Format string
	Data   []byte
}

// BoundingBox is one published detection in frame pixel coordinates.
type BoundingBox struct {
	Class       string
	Probability float64
	XMin        int
	YMin        int
	XMax        int
	YMax        int
}

// Detections is the per-frame merged detection list. Boxes may be empty; a
// message is still published for every successfully processed frame.
type Detections struct {
	Header
	Boxes []BoundingBox
}

// ImageFrameEncoding is the only encoding published for annotated frames.
const ImageFrameEncoding = "rgb8"

// ImageFrame is a published annotated frame: packed 3-channel 8-bit RGB
// with Step = Width*3.
type ImageFrame struct {
	Header
	Width, Height int
	Encoding      string
	Step          int
	Data          []byte
}
