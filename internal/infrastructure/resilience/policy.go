package resilience

import "time"

// Breaker names of the outbound calls made while an invoice moves through the workflow.
const (
	OpExtractOllama   = "extract.ollama"
	OpExtractGemini   = "extract.gemini"
	OpOCRAzure        = "ocr.azure"
	OpPublishUploaded = "queue.invoice_uploaded"
)

// Budget overrides the retry settings of one operation. Zero fields inherit the Config values.
type Budget struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Config tunes retries and the per-operation circuit breakers shared by the
// extraction, OCR and upload-event adapters.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Budgets map[string]Budget
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,

		Budgets: map[string]Budget{
			// A model call runs for seconds; one retry after a pause.
			OpExtractOllama: {MaxAttempts: 2, InitialBackoff: time.Second, MaxBackoff: 2 * time.Second},
			OpExtractGemini: {MaxAttempts: 2, InitialBackoff: time.Second, MaxBackoff: 2 * time.Second},
			// A lost upload event leaves the invoice in the inbox.
			OpPublishUploaded: {MaxAttempts: 5},
		},
	}
}

// retryFor resolves the retry settings of operation.
func (c Config) retryFor(operation string) Budget {
	out := Budget{
		MaxAttempts:    c.RetryMaxAttempts,
		InitialBackoff: c.RetryInitialBackoff,
		MaxBackoff:     c.RetryMaxBackoff,
	}
	b, ok := c.Budgets[operation]
	if !ok {
		return out
	}
	if b.MaxAttempts > 0 {
		out.MaxAttempts = b.MaxAttempts
	}
	if b.InitialBackoff > 0 {
		out.InitialBackoff = b.InitialBackoff
	}
	if b.MaxBackoff > 0 {
		out.MaxBackoff = b.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	return out
}

// normalize replaces zero or out-of-range values with defaults.
func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
