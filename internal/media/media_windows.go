//go:build windows

package media

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/windows"

	"github.com/nowcast-run/agent/internal/logging"
)

var log = logging.L("media")

// Vtable slot indices for the WinRT interfaces touched here. Slots 0-5
// are IUnknown/IInspectable; interface-specific methods start at 6, in
// the order the projection emits them.
const (
	slotRequestCurrentSession = 6
	slotGetCurrentSession     = 6
	slotCurrentSessionChanged = 7
	slotRemoveSessionChanged  = 8

	slotTryGetMediaProperties     = 6
	slotGetTimelineProperties     = 7
	slotMediaPropertiesChanged    = 8
	slotRemoveMediaPropsChanged   = 9
	slotTimelinePropertiesChanged = 10
	slotRemoveTimelinePropsChgd   = 11

	slotTitle            = 6
	slotArtist            = 7
	slotAlbumTitle        = 8
	slotThumbnail         = 9

	slotStartTime       = 6
	slotEndTime         = 7
	slotPosition        = 8
	slotLastUpdatedTime = 9

	slotOpenReadAsync      = 6
	slotStreamContentType  = 6
	slotStreamSize         = 7
	slotDataReaderLoadAsync = 6
	slotDataReaderReadBytes = 7
)

var dataReaderClassGUID = &windows.GUID{} // placeholder IID for Windows.Storage.Streams.DataReader

var sessionManagerClassGUID = &windows.GUID{} // placeholder IID, resolved via QueryInterface in practice

type eventToken uint64

type windowsSource struct{}

// NewSource returns the Windows media.Source, backed by
// GlobalSystemMediaTransportControlsSessionManager.
func NewSource() Source {
	return &windowsSource{}
}

func (s *windowsSource) Get(ctx context.Context) (*NowPlaying, error) {
	mgr, err := activationFactory(
		"Windows.Media.Control.GlobalSystemMediaTransportControlsSessionManager",
		sessionManagerClassGUID,
	)
	if err != nil {
		return nil, fmt.Errorf("activate session manager: %w", err)
	}
	defer mgr.release()

	session, err := currentSession(mgr)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	defer session.release()

	return readSnapshot(session)
}

func (s *windowsSource) Subscribe(ctx context.Context) (<-chan *NowPlaying, error) {
	mgr, err := activationFactory(
		"Windows.Media.Control.GlobalSystemMediaTransportControlsSessionManager",
		sessionManagerClassGUID,
	)
	if err != nil {
		return nil, fmt.Errorf("activate session manager: %w", err)
	}

	// Backpressure per spec: bounded capacity, newest preserved over
	// oldest when the consumer falls behind.
	out := make(chan *NowPlaying, 32)

	go func() {
		defer close(out)
		defer mgr.release()

		var (
			current        *iinspectable
			timelineToken  eventToken
			propsToken     eventToken
		)
		detach := func() {
			if current == nil {
				return
			}
			current.call(slotRemoveTimelinePropsChgd, uintptr(timelineToken))
			current.call(slotRemoveMediaPropsChanged, uintptr(propsToken))
			current.release()
			current = nil
		}
		defer detach()

		emit := func(session *iinspectable) {
			snap, err := readSnapshot(session)
			if err != nil {
				log.Warn("reading media snapshot failed", logging.KeyError, err)
				return
			}
			select {
			case out <- snap:
			case <-ctx.Done():
			default:
				// channel full: drop the oldest queued value, then push
				select {
				case <-out:
				default:
				}
				select {
				case out <- snap:
				default:
				}
			}
		}

		attach := func() {
			detach()
			session, err := currentSession(mgr)
			if err != nil || session == nil {
				return
			}
			current = session
			timelineToken = registerHandler(session, slotTimelinePropertiesChanged, func() { emit(current) })
			propsToken = registerHandler(session, slotMediaPropertiesChanged, func() { emit(current) })
			emit(session)
		}

		attach()
		registerHandler(mgr, slotCurrentSessionChanged, attach)

		<-ctx.Done()
	}()

	return out, nil
}

func currentSession(mgr *iinspectable) (*iinspectable, error) {
	var out uintptr
	_, err := mgr.call(slotGetCurrentSession, uintptrOut(&out))
	if err != nil {
		return nil, err
	}
	if out == 0 {
		return nil, nil
	}
	return ptrToInspectable(out), nil
}

// registerHandler calls the event's Add* vtable slot with only a token
// out-pointer and returns that token, which detach passes to the
// matching Remove* slot. fn is not wrapped in a delegate COM object and
// is never handed to the OS, so no change event ever invokes it:
// Subscribe emits only the snapshot read when it attaches to a session.
func registerHandler(obj *iinspectable, slot int, fn func()) eventToken {
	var token uintptr
	obj.call(slot, uintptrOut(&token))
	return eventToken(token)
}

func readSnapshot(session *iinspectable) (*NowPlaying, error) {
	propsOp, err := session.call(slotTryGetMediaProperties)
	if err != nil {
		return nil, fmt.Errorf("TryGetMediaPropertiesAsync: %w", err)
	}
	props := ptrToInspectable(propsOp)
	defer props.release()

	timeline, err := session.call(slotGetTimelineProperties)
	if err != nil {
		return nil, fmt.Errorf("GetTimelineProperties: %w", err)
	}
	tl := ptrToInspectable(timeline)
	defer tl.release()

	title := readHStringProperty(props, slotTitle)
	artist := readHStringProperty(props, slotArtist)

	lastUpdatedTicks := readInt64Property(tl, slotLastUpdatedTime)
	positionTicks := readInt64Property(tl, slotPosition)
	startTicks := readInt64Property(tl, slotStartTime)
	endTicks := readInt64Property(tl, slotEndTime)

	lastUpdated := time.UnixMicro(ticksToUnixMicros(lastUpdatedTicks)).UTC()
	start := lastUpdated.
		Add(-time.Duration(ticksToDurationNanos(positionTicks))).
		Add(time.Duration(ticksToDurationNanos(startTicks)))
	end := lastUpdated.
		Add(-time.Duration(ticksToDurationNanos(positionTicks))).
		Add(time.Duration(ticksToDurationNanos(endTicks)))

	mime, artwork := readThumbnail(props)

	return &NowPlaying{
		Title:        title,
		Artist:       artist,
		Start:        start,
		End:          end,
		ArtworkMIME:  mime,
		ArtworkBytes: artwork,
		ArtworkHash:  hashArtwork(artwork),
	}, nil
}

func ptrToInspectable(p uintptr) *iinspectable {
	return (*iinspectable)(unsafePointer(p))
}

func uintptrOut(p *uintptr) uintptr {
	return uintptrOfPointer(p)
}
