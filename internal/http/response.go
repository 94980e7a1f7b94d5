package http

import (
	"net/http"
	"time"
)

// TimingInfo breaks a request down into its network phases.
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte

	// GateWait is how long the request waited for admission
	GateWait time.Duration

	Timing TimingInfo
}

// BodyString returns the body as a string
func (r *Response) BodyString() string {
	return string(r.Body)
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
