package models

// FrameType is the encoder's classification of a single frame in a stat log
type FrameType uint8

const (
	// Other covers every line whose first byte is neither 'i' nor 'p'
	Other FrameType = iota
	Keyframe
	PredictedFrame
)

func (t FrameType) String() string {
	switch t {
	case Keyframe:
		return "I"
	case PredictedFrame:
		return "P"
	default:
		return "?"
	}
}

// FillValue is the byte written to every sample of a mask frame
type FillValue uint8

const (
	Black FillValue = 0
	White FillValue = 255
)

// WorkItem represents a frame to be rendered
type WorkItem struct {
	FrameNum int
	Total    int
}

// NoFrame is the MaskResult type of frames outside the log
const NoFrame = "-"

// MaskResult represents the outcome of rendering one mask frame
type MaskResult struct {
	Frame        int       `json:"frame"`
	LogicalIndex int       `json:"logical_index"`
	Type         string    `json:"type"`
	Fill         FillValue `json:"fill"`
}
