package app

import (
	"context"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
	"github.com/mhessel/penaltypot/internal/store"
)

// Use case interfaces consumed by the API layer. Each is implemented by
// the service of the same name.

// RefUsecase manages clubs, members, and penalty definitions.
type RefUsecase interface {
	CreateClub(ctx context.Context, name string) (*ledger.Club, error)
	ListClubs(ctx context.Context) ([]ledger.Club, error)
	CreateMember(ctx context.Context, clubID, name string, guest bool) (*ledger.Member, error)
	ListMembers(ctx context.Context, clubID string) ([]ledger.Member, error)
	CreatePenalty(ctx context.Context, p ledger.Penalty) (*ledger.Penalty, error)
	ListPenalties(ctx context.Context, clubID string, activeOnly bool) ([]ledger.Penalty, error)
	RetirePenalty(ctx context.Context, id string) error
}

// SessionsUsecase manages the session lifecycle.
type SessionsUsecase interface {
	Start(ctx context.Context, clubID string, memberIDs []string) (*ledger.Session, error)
	Get(ctx context.Context, sessionID string) (*ledger.Session, error)
	List(ctx context.Context, clubID string) ([]ledger.Session, error)
	AddMember(ctx context.Context, sessionID, memberID string) (*ledger.Session, error)
	End(ctx context.Context, sessionID string) (*ledger.Session, error)
}

// EntriesUsecase appends to and reads the per-session log.
type EntriesUsecase interface {
	Append(ctx context.Context, sessionID string, req AppendRequest) (*event.Entry, error)
	Query(ctx context.Context, filter store.QueryFilter) (store.QueryResult, error)
}

// VerifyUsecase runs stored-vs-replayed balance verification.
type VerifyUsecase interface {
	Verify(ctx context.Context, clubID, sessionID string) (*VerifyResult, error)
}

// ReportUsecase serves read-only views derived from the log.
type ReportUsecase interface {
	Tally(ctx context.Context, sessionID string) (event.TallyPayload, error)
	Balances(ctx context.Context, sessionID string) (ledger.Balances, error)
}
