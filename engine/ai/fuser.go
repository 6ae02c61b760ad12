// Package ai concurrently calls the local and cloud hazard detectors and
// fuses their results with cloud-precedence, grounded on the teacher's
// engine/internal/pipeline concurrency style: plain goroutines plus a
// WaitGroup rather than a third-party fan-out helper, matching the
// teacher's own preference across its pipeline stages.
package ai

import (
	"context"
	"sync"
	"time"

	"aegis/engine/errs"
)

// Snapshot is one detector's observation of an edge. Fields are pointers so
// a detector that succeeds but omits a field (JSON null or absent key) is
// distinguishable from one that reports an actual zero (spec §4.6's
// cloud.f ?? local.f ?? 0 coalescing depends on that distinction per field).
type Snapshot struct {
	PeopleCount *int
	FireProb    *float64
	SmokeProb   *float64
}

// Detector abstracts a hazard-detection endpoint (local or cloud, spec §6):
// a JSON POST that yields a Snapshot, or an error on timeout/HTTP
// failure/malformed body — all of which the fuser treats as "null result".
type Detector interface {
	Detect(ctx context.Context, imageRef, cameraID, edgeID string) (*Snapshot, error)
}

// Fused is the field-wise cloud-precedence fusion result (spec §4.6):
// fused.f = cloud.f if cloud succeeded and supplied f, else local.f if
// local succeeded, else 0.
type Fused struct {
	PeopleCount float64
	FireProb    float64
	SmokeProb   float64
}

// Fuser calls Local and Cloud concurrently, each bounded by its own
// timeout, and fuses the results.
type Fuser struct {
	Local        Detector
	Cloud        Detector
	LocalTimeout time.Duration
	CloudTimeout time.Duration
}

// NewFuser builds a Fuser with the spec's default timeouts (local 15s,
// cloud 25s), overridable via the struct fields.
func NewFuser(local, cloud Detector) *Fuser {
	return &Fuser{
		Local:        local,
		Cloud:        cloud,
		LocalTimeout: 15 * time.Second,
		CloudTimeout: 25 * time.Second,
	}
}

// Fuse invokes the local detector always, and the cloud detector only when
// cloudEnabled and imageURL is non-empty (spec §4.6). Both calls run
// concurrently; each failure (including ctx cancellation) degrades that
// detector's contribution to "no result" rather than aborting the other.
func (f *Fuser) Fuse(ctx context.Context, localPath, imageURL, cameraID, edgeID string, cloudEnabled bool) (Fused, error) {
	var wg sync.WaitGroup
	var local, cloud *Snapshot

	wg.Add(1)
	go func() {
		defer wg.Done()
		local = f.callLocal(ctx, localPath, cameraID, edgeID)
	}()

	callCloud := cloudEnabled && imageURL != "" && f.Cloud != nil
	if callCloud {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cloud = f.callCloud(ctx, imageURL, cameraID, edgeID)
		}()
	}

	wg.Wait()

	fused := Fused{
		PeopleCount: fieldOrZero(cloudPeople(cloud), localPeople(local)),
		FireProb:    fieldOrZero(cloudFire(cloud), localFire(local)),
		SmokeProb:   fieldOrZero(cloudSmoke(cloud), localSmoke(local)),
	}
	if local == nil && cloud == nil {
		return fused, errs.ErrAI
	}
	return fused, nil
}

func (f *Fuser) callLocal(ctx context.Context, localPath, cameraID, edgeID string) *Snapshot {
	if f.Local == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, f.LocalTimeout)
	defer cancel()
	snap, err := f.Local.Detect(cctx, localPath, cameraID, edgeID)
	if err != nil {
		return nil
	}
	return snap
}

func (f *Fuser) callCloud(ctx context.Context, imageURL, cameraID, edgeID string) *Snapshot {
	cctx, cancel := context.WithTimeout(ctx, f.CloudTimeout)
	defer cancel()
	snap, err := f.Cloud.Detect(cctx, imageURL, cameraID, edgeID)
	if err != nil {
		return nil
	}
	return snap
}

// field pointers let "field present but zero" (e.g. cloud fire=0) be
// distinguished from "field absent" (cloud failed, or cloud succeeded but
// didn't report that particular field). The spec's cloud.f ?? local.f ?? 0
// coalescing needs that distinction per field: a camera with both detectors
// failing yields an all-zero snapshot, but a cloud success with fire=0 must
// not fall through to local's fire value, and a cloud success that omits
// peopleCount must fall through to local's.
type optFloat struct {
	ok  bool
	val float64
}

func cloudPeople(s *Snapshot) optFloat {
	if s == nil || s.PeopleCount == nil {
		return optFloat{}
	}
	return optFloat{ok: true, val: float64(*s.PeopleCount)}
}
func cloudFire(s *Snapshot) optFloat {
	if s == nil || s.FireProb == nil {
		return optFloat{}
	}
	return optFloat{ok: true, val: *s.FireProb}
}
func cloudSmoke(s *Snapshot) optFloat {
	if s == nil || s.SmokeProb == nil {
		return optFloat{}
	}
	return optFloat{ok: true, val: *s.SmokeProb}
}

func localPeople(s *Snapshot) optFloat {
	if s == nil || s.PeopleCount == nil {
		return optFloat{}
	}
	return optFloat{ok: true, val: float64(*s.PeopleCount)}
}
func localFire(s *Snapshot) optFloat {
	if s == nil || s.FireProb == nil {
		return optFloat{}
	}
	return optFloat{ok: true, val: *s.FireProb}
}
func localSmoke(s *Snapshot) optFloat {
	if s == nil || s.SmokeProb == nil {
		return optFloat{}
	}
	return optFloat{ok: true, val: *s.SmokeProb}
}

func fieldOrZero(cloud, local optFloat) float64 {
	if cloud.ok {
		return cloud.val
	}
	if local.ok {
		return local.val
	}
	return 0
}
