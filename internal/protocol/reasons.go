package protocol

// Submission rejection reasons. They travel in SubmitResponse.Reason with ok=false.
const (
	ReasonInvalidSession   = "invalid_session"
	ReasonAlreadySubmitted = "already_submitted"
	ReasonTimeAnomaly      = "time_anomaly"
	ReasonInvalidIncrement = "invalid_increment"
	ReasonImplausibleScore = "implausible_score"
)

// Live-play error codes.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrInternal        = "E_INTERNAL"
)

var knownReasons = map[string]struct{}{
	ReasonInvalidSession:   {},
	ReasonAlreadySubmitted: {},
	ReasonTimeAnomaly:      {},
	ReasonInvalidIncrement: {},
	ReasonImplausibleScore: {},
}

// IsKnownReason reports whether r is a rejection reason clients understand.
// The empty reason (accepted, or not ranked) is known.
func IsKnownReason(r string) bool {
	if r == "" {
		return true
	}
	_, ok := knownReasons[r]
	return ok
}
