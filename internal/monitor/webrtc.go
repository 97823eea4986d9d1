package monitor

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"gopkg.in/hraban/opus.v2"

	"github.com/skywavefm/onair/internal/audio"
)

// WebRTCHandler serves SDP negotiation for a read-only WebRTC tap of the Bus.
// It carries no transport controls (no seek, no pause): connecting starts
// playback from whatever the master bus is emitting at that instant.
type WebRTCHandler struct {
	log zerolog.Logger
	bus *Bus

	mu    sync.Mutex
	peers []*webrtc.PeerConnection
}

// NewWebRTCHandler creates a monitor tap handler over bus.
func NewWebRTCHandler(log zerolog.Logger, bus *Bus) *WebRTCHandler {
	return &WebRTCHandler{log: log, bus: bus}
}

// PeerCount returns the number of currently connected monitor listeners.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"onair-monitor",
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	<-webrtc.GatheringCompletePromise(pc)

	h.mu.Lock()
	h.peers = append(h.peers, pc)
	h.mu.Unlock()
	h.log.Info().Int("total", h.PeerCount()).Msg("monitor peer connected")

	go h.streamToPeer(pc, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			h.removePeer(pc)
			pc.Close()
			h.log.Info().Int("remaining", h.PeerCount()).Msg("monitor peer disconnected")
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

func (h *WebRTCHandler) streamToPeer(pc *webrtc.PeerConnection, track *webrtc.TrackLocalStaticSample) {
	listener := h.bus.Subscribe()
	defer h.bus.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.log.Error().Err(err).Msg("monitor: opus encoder error")
		return
	}
	enc.SetBitrate(128000)

	buf := make([]byte, 4000)
	for {
		select {
		case <-listener.done:
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, buf)
			if err != nil {
				h.log.Warn().Err(err).Msg("monitor: opus encode error")
				continue
			}
			if err := track.WriteSample(media.Sample{Data: buf[:n], Duration: audio.FrameDuration}); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.peers {
		if p == pc {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			return
		}
	}
}
