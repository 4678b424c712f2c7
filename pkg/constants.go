package dupeprune

// Hash algorithm names accepted in the config file and on the command line
const (
	HashSHA256     = "sha256"
	HashSHA512     = "sha512"
	HashBLAKE2b256 = "blake2b-256"
	HashBLAKE2b512 = "blake2b-512"
)

// DefaultHashAlgorithm is used when neither config nor flags choose one
const DefaultHashAlgorithm = HashSHA256

// Output formats understood by the report renderers
const (
	FormatHuman   = "human"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
	FormatFdupes  = "fdupes"
)

// Pipeline stages named in Skipped diagnostics
const (
	StageWalk   = "walk"
	StageHash   = "hash"
	StageVerify = "verify"
)

// Debug flag names accepted by SetDebugFlags
const (
	DebugWalk    = "walk"
	DebugHash    = "hash"
	DebugVerify  = "verify"
	DebugPlan    = "plan"
	DebugExecute = "execute"
)

// Performance defaults
const (
	DefaultHashWorkers   = 4
	DefaultDeleteWorkers = 2
	DefaultHashBuffer    = "2M"
	MaxWorkers           = 64
)

// Journal outcome markers
const (
	JournalDeleted = "deleted"
	JournalFailed  = "failed"
)
