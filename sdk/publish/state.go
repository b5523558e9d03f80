package publish

import (
	"github.com/heavenprotocol/publisher/pkg/signer"
	"github.com/heavenprotocol/publisher/pkg/tagcodec"
	"github.com/heavenprotocol/publisher/pkg/upload"
)

// State is a resumable snapshot of one publish task. Callers that need to
// survive a partial failure persist it between Resume attempts; each step
// flag flips exactly once.
type State struct {
	TaskID string

	Label       string
	TimestampMs int64
	Nonce       string
	Payload     []byte
	Tags        []tagcodec.Tag

	TrackID   [32]byte
	ContentID [32]byte

	Message          []byte
	MessageSignature signer.Signature
	Signed           bool

	Receipt  upload.Receipt
	Uploaded bool

	TxHash        string
	BroadcastDone bool
}

// nextStep names the first incomplete step.
func (st *State) nextStep() Step {
	switch {
	case !st.Signed:
		return StepSign
	case !st.Uploaded:
		return StepUpload
	default:
		return StepBroadcast
	}
}
