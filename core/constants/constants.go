package constants

// Server defaults
const (
	ServerDefaultHost            = "0.0.0.0"
	ServerDefaultPort            = 7070
	ServerShutdownTimeoutSeconds = 10
)

// Database defaults
const (
	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
)

// Scheduling defaults, used when neither config nor the campaign override a value.
const (
	DefaultMinLeadTimeDays      = 2
	DefaultMaxLeadTimeDays      = 6
	DefaultPreferredStartHour   = 9
	DefaultPreferredEndHour     = 17
	DefaultCooldownMinutes      = 20
	DefaultMaxErrorsBeforePause = 3
	DefaultHealthThreshold      = 40
	DefaultDailyQuota           = 30
	DefaultExcludeWeekends      = true
)

// Campaign defaults.
const (
	DefaultEventDurationMinutes = 30
)

// Fallback policies applied when no conflict-free slot exists.
const (
	FallbackSkip           = "skip"
	FallbackForce          = "force"
	FallbackNeedsAttention = "needs_attention"
)

// Slot grid and retry bounds for the slot calculator.
const (
	SlotMinuteGrid      = 15
	SlotConflictRetries = 5
)

// Dispatch retry policy (transient send failures).
const (
	DispatchMaxAttempts     = 3
	DispatchBackoffBaseSecs = 1
	DispatchBackoffFactor   = 4
)

// Lock acquisition bound for per-inbox reservations. The lease only applies
// to the redis locker and must outlive the longest critical section.
const (
	InboxLockTimeoutSeconds = 5
	InboxLockLeaseSeconds   = 30
)

// Health score adjustments applied by the inbox registry.
const (
	HealthMax          = 100
	HealthMin          = 0
	HealthRecoveryStep = 5
	HealthPenaltyStep  = 20
)

// Asynq queue names.
const (
	QueueCampaigns = "campaigns"
	QueueDispatch  = "dispatch"
)
