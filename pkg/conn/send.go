package conn

import (
	"time"

	"github.com/fleetlink/fleetlink/pkg/metrics"
	"github.com/fleetlink/fleetlink/pkg/types"
)

// Send operations. Failures never propagate as errors to producers: each
// send reports a boolean outcome and the submission coordinator decides
// whether to divert the payload to the retry cache.

// SendSnapshot attempts to deliver one fleet-status snapshot payload.
// Delivery success means the outbound emit was accepted by the transport;
// the server's data_response is informational only.
func (m *Manager) SendSnapshot(payload types.Document) bool {
	s, ok := m.authenticatedSession()
	if !ok {
		return false
	}

	data, err := encodeSnapshotPayload([]types.Document{payload})
	if err != nil {
		m.logger.Error().Err(err).Msg("snapshot encoding failed")
		return false
	}

	msg := fleetDataMessage{
		Credential: m.settings.APIKey,
		Timestamp:  time.Now().Unix(),
		Compressed: true,
		Data:       data,
	}
	if err := s.Emit("fleet_data", msg); err != nil {
		m.logger.Warn().Err(err).Msg("snapshot send failed")
		return false
	}
	metrics.PayloadsDelivered.WithLabelValues("snapshot").Inc()
	return true
}

// SendLoot attempts to deliver one voyage loot record.
func (m *Manager) SendLoot(rec types.LootRecord) bool {
	s, ok := m.authenticatedSession()
	if !ok {
		return false
	}

	msg := lootMessage{
		Credential:    m.settings.APIKey,
		CharacterName: rec.CharacterName,
		FactionID:     rec.FactionID,
		FactionTag:    rec.FactionTag,
		SubmarineName: rec.SubmarineName,
		Sectors:       rec.Sectors,
		Items:         rec.Items,
		TotalValue:    rec.TotalValue,
		CapturedAt:    rec.CapturedAt,
	}
	if err := s.Emit("voyage_loot", msg); err != nil {
		m.logger.Warn().Err(err).Msg("loot send failed")
		return false
	}
	metrics.PayloadsDelivered.WithLabelValues("loot").Inc()
	return true
}

// SendHeartbeat emits a best-effort ping; failures are swallowed.
func (m *Manager) SendHeartbeat() {
	s, ok := m.authenticatedSession()
	if !ok {
		return
	}
	if err := s.Emit("ping", nil); err != nil {
		m.logger.Debug().Err(err).Msg("heartbeat failed")
	}
}

// authenticatedSession returns the live session when sends may be attempted
// directly, which is only in the Authenticated state.
func (m *Manager) authenticatedSession() (session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.StateAuthenticated || m.session == nil {
		return nil, false
	}
	return m.session, true
}
