package groundstation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/lora_tracker/internal/record"
)

// FrameSource yields received frames. transport.PacketReader and
// transport.Subscription implement it.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
}

// Counters summarise what the station has seen.
type Counters struct {
	Frames   uint64 `json:"frames"`
	Path     uint64 `json:"path"`
	Obstacle uint64 `json:"obstacle"`
	Rejected uint64 `json:"rejected"`
}

// Station decodes frames from a source, stores them and feeds the hub.
type Station struct {
	src   FrameSource
	dec   *Decoder
	store *Store // optional
	hub   *Hub   // optional

	now func() time.Time

	mu       sync.Mutex
	counters Counters
}

// NewStation wires a source to a decoder. store and hub may be nil.
func NewStation(src FrameSource, dec *Decoder, store *Store, hub *Hub) *Station {
	return &Station{src: src, dec: dec, store: store, hub: hub, now: time.Now}
}

// Handle processes one frame. Rejected frames are counted and returned as
// errors; they never stop the station.
func (s *Station) Handle(frame []byte) (Entry, error) {
	s.mu.Lock()
	s.counters.Frames++
	s.mu.Unlock()

	rec, line, err := s.dec.Decode(frame)
	if err != nil {
		s.reject()
		return Entry{}, err
	}

	e := Entry{ReceivedAt: s.now().UTC(), Kind: rec.Kind, Line: line}
	if s.store != nil {
		if e, err = s.store.Save(rec, line, s.now()); err != nil {
			s.reject()
			return Entry{}, err
		}
	} else {
		e.Latitude, e.Longitude, e.Heading = rec.Latitude, rec.Longitude, rec.Heading
		e.HasPosition = rec.Kind == record.KindPath
		e.Distance = rec.Distance
		e.NoEcho = rec.Kind == record.KindObstacle && rec.Distance.IsNoEcho()
	}

	s.mu.Lock()
	if rec.Kind == record.KindPath {
		s.counters.Path++
	} else {
		s.counters.Obstacle++
	}
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Broadcast(e)
	}
	return e, nil
}

func (s *Station) reject() {
	s.mu.Lock()
	s.counters.Rejected++
	s.mu.Unlock()
}

// Counters returns a copy of the counters.
func (s *Station) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Run receives until ctx is done or the source fails.
func (s *Station) Run(ctx context.Context) error {
	log.Println("station: receiving")
	for {
		frame, err := s.src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c := s.Counters()
				log.Printf("station: stopping, %d frames, %d path, %d obstacle, %d rejected",
					c.Frames, c.Path, c.Obstacle, c.Rejected)
				return nil
			}
			return err
		}
		e, err := s.Handle(frame)
		if err != nil {
			log.Printf("station: rejected %d byte frame: %v", len(frame), err)
			continue
		}
		log.Printf("station: %s", e.Line)
	}
}
