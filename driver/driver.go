package driver

import (
	"context"

	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/model"
)

// Session is one live automation context against a provider: a browser
// profile, cookie jar and proxy binding. Sessions are single-use; a retry
// always gets a fresh one.
type Session interface {
	// Release tears the session down. Called exactly once per session,
	// including when the attempt's context was cancelled.
	Release(ctx context.Context) error
}

// Driver automates one provider's acquisition flow. Implementations are
// registered by provider key and built per run from the provider's config.
//
// PerformAcquisition runs the flow up to the point where the provider either
// issues the artifact directly or demands settlement; it mutates the record
// in place (AttachSettlement or AttachArtifact) and returns classified errors.
type Driver interface {
	ProviderKey() string
	StartURL() string
	NewSession(ctx context.Context) (Session, error)
	PerformAcquisition(ctx context.Context, session Session, record *model.AcquisitionRecord) error
	CheckHealth(ctx context.Context, session Session, record *model.AcquisitionRecord) (bool, error)
}

// DeliveryPoller is implemented by drivers whose provider issues the artifact
// asynchronously after settlement. PollDelivery reports whether the artifact
// was delivered on this poll; it attaches the artifact itself when it was.
type DeliveryPoller interface {
	PollDelivery(ctx context.Context, session Session, record *model.AcquisitionRecord) (bool, error)
}

// Factory builds a driver from its provider config.
type Factory func(cfg config.ProviderConfig) Driver

// Info is a provider's catalog entry: the research metadata behind the
// providers listing. Inactive entries stay in the catalog but are skipped by
// whole-catalog runs.
type Info struct {
	ProviderKey      string
	Name             string
	URL              string
	SignupType       string
	Networks         []string
	AcceptedCrypto   []string
	MinDepositUSD    int
	DenominationsUSD []int
	Fees             string
	RiskLevel        string
	Notes            string
	Active           bool
}

// Descriptor declares a driver implementation for discovery, together with
// its catalog entry.
type Descriptor struct {
	ProviderKey string
	Factory     Factory
	Info        Info
}
