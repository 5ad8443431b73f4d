package isp

import "time"

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during Program to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Timeout bounds the wait for each response
	Timeout time.Duration

	// ConnectTimeout bounds the wait for each CONNECT attempt
	ConnectTimeout time.Duration

	// ConnectAttempts is how many CONNECT frames are sent before giving up.
	// The device only listens during its connect window after reset, so
	// the host keeps knocking.
	ConnectAttempts int

	// Retries is the number of retry attempts for timed-out commands
	Retries int

	// ChunkSize is the data size per PROGRAM frame, a word multiple of at
	// most 52 bytes
	ChunkSize int

	// EraseChunk is the number of pages erased per PAGE_ERASE frame
	EraseChunk int

	// VerifyAfterProgram compares the device CRC with the image after Program
	VerifyAfterProgram bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timeout:            2 * time.Second,
		ConnectTimeout:     50 * time.Millisecond,
		ConnectAttempts:    100,
		Retries:            3,
		ChunkSize:          48,
		EraseChunk:         16,
		VerifyAfterProgram: true,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the response timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithConnect sets the CONNECT attempt count and per-attempt timeout.
//
// Example:
//
//	prog := isp.New(port, isp.WithConnect(200, 20*time.Millisecond))
func WithConnect(attempts int, timeout time.Duration) Option {
	return func(c *Config) {
		if attempts > 0 {
			c.ConnectAttempts = attempts
		}
		if timeout > 0 {
			c.ConnectTimeout = timeout
		}
	}
}

// WithRetries sets the number of retry attempts for timed-out commands.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithChunkSize sets the data size per PROGRAM frame. Values that are not
// a word multiple or exceed the frame payload are ignored.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size%4 == 0 && size <= 52 {
			c.ChunkSize = size
		}
	}
}

// WithEraseChunk sets how many pages one PAGE_ERASE frame covers.
func WithEraseChunk(pages int) Option {
	return func(c *Config) {
		if pages > 0 {
			c.EraseChunk = pages
		}
	}
}

// WithVerify enables or disables CRC verification after Program.
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterProgram = verify
	}
}
