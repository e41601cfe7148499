package qa

import "errors"

var (
	// ErrGateRequired is returned when a Composer is built without an access gate.
	ErrGateRequired = errors.New("access gate required")

	// ErrRetrieverRequired is returned when a Composer is built without a retriever.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrConversationsRequired is returned when a Composer is built without a conversation store.
	ErrConversationsRequired = errors.New("conversation store required")

	// ErrRetrievalFailed wraps embedder and index faults raised while answering.
	ErrRetrievalFailed = errors.New("retrieval failed")
)
