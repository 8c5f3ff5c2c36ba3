package location

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrFixTimeout = errors.New("position fix timed out")

type positionReport struct {
	reading Reading
	err     error
}

// RemoteSensor is fed by the device: the thin client answers the permission prompt
// and pushes position fixes, and the calls below suspend until it does.
type RemoteSensor struct {
	mu         sync.Mutex
	status     PermissionStatus
	answered   chan struct{}
	positions  chan positionReport
	fixTimeout time.Duration
}

// NewRemoteSensor. fixTimeout bounds a single CurrentPosition wait the way the
// platform location call does; 0 waits until ctx is done.
func NewRemoteSensor(fixTimeout time.Duration) *RemoteSensor {
	return &RemoteSensor{
		answered:   make(chan struct{}),
		positions:  make(chan positionReport, 1),
		fixTimeout: fixTimeout,
	}
}

// ReportPermission. record the prompt answer. only the first answer counts.
func (r *RemoteSensor) ReportPermission(granted bool) PermissionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != PermissionUndetermined {
		return r.status
	}
	if granted {
		r.status = PermissionGranted
	} else {
		r.status = PermissionDenied
	}
	close(r.answered)
	return r.status
}

func (r *RemoteSensor) ReportPosition(reading Reading) {
	r.push(positionReport{reading: reading})
}

func (r *RemoteSensor) ReportPositionError(err error) {
	r.push(positionReport{err: err})
}

// push keeps only the latest report.
func (r *RemoteSensor) push(rep positionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.positions:
	default:
	}
	r.positions <- rep
}

func (r *RemoteSensor) RequestForegroundPermission(ctx context.Context) (PermissionStatus, error) {
	select {
	case <-r.answered:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.status, nil
	case <-ctx.Done():
		return PermissionUndetermined, ctx.Err()
	}
}

func (r *RemoteSensor) CurrentPosition(ctx context.Context) (Reading, error) {
	var timeout <-chan time.Time
	if r.fixTimeout > 0 {
		timer := time.NewTimer(r.fixTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case rep := <-r.positions:
		if rep.err != nil {
			return Reading{}, rep.err
		}
		if rep.reading.Time.IsZero() {
			rep.reading.Time = time.Now()
		}
		return rep.reading, nil
	case <-timeout:
		return Reading{}, ErrFixTimeout
	case <-ctx.Done():
		return Reading{}, ctx.Err()
	}
}
