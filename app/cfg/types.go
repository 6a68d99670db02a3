package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// HTTP server configuration
	Port string

	// Worker configuration
	WorkerCount    int
	FetchTimeout   int // seconds
	DomainInterval int // seconds, minimum spacing between fetches per domain
	StaleAfter     int // seconds, feed age before it is due for refresh
	SweepInterval  int // seconds, periodic re-enqueue of all feeds
	MaxFailures    int // consecutive failures before hot-retry is suspended
	RetryBase      int // seconds, transient-failure backoff base
	RetryCap       int // seconds, transient-failure backoff cap
	ExtractContent bool

	// Application metadata
	SeedsFile string
	UserAgent string
	Debug     bool
	Version   string
}
