package webd

import (
	"encoding/json"
	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/types/sample"
)

// sessionVehicle is the vehicle a websocket session subscribed to with ?vehicle=.
// Empty means every vehicle.
func sessionVehicle(sess *melody.Session) conceptual.VehicleID {
	return conceptual.VehicleID(sess.Request.URL.Query().Get("vehicle"))
}

// sessionID tags a session in logs, connect to disconnect.
func sessionID(sess *melody.Session) string {
	if id, ok := sess.Get("id"); ok {
		return id.(string)
	}
	return ""
}

func wants(sess *melody.Session, vehicle conceptual.VehicleID) bool {
	v := sessionVehicle(sess)
	return v.IsEmpty() || v == vehicle
}

// initMelody sets up the websocket handler.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// A new session gets the last known sample of each vehicle it follows.
	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		sess.Set("id", uuid.NewString())
		vehicle := sessionVehicle(sess)
		s.logger.Info("Websocket connected", "session", sessionID(sess), "remote", sess.Request.RemoteAddr, "vehicle", vehicle)
		if !vehicle.IsEmpty() {
			if last, ok := s.last(vehicle); ok {
				s.writeEnvelope(sess, sample.NewLive(vehicle, last))
			}
			return
		}
		s.lastKnown.Each(func(v conceptual.VehicleID, last sample.Sample) {
			s.writeEnvelope(sess, sample.NewLive(v, last))
		})
	})

	// Right now don't care about incoming messages from clients. Log and drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "session", sessionID(sess), "remote", sess.Request.RemoteAddr, "message", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Info("Websocket disconnected", "session", sessionID(sess), "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "session", sessionID(sess), "remote", sess.Request.RemoteAddr, "error", e)
	})

	// Broadcast accepted envelopes to the sessions following their vehicle.
	envelopes := make(chan sample.Envelope, 64)
	s.sub = s.feed.Subscribe(envelopes)
	go func() {
		for {
			select {
			case env := <-envelopes:
				b, err := json.Marshal(env)
				if err != nil {
					s.logger.Error("Failed to marshal envelope", "error", err)
					continue
				}
				err = s.melodyInstance.BroadcastFilter(b, func(q *melody.Session) bool {
					return wants(q, env.Vehicle)
				})
				if err != nil {
					s.logger.Warn("Failed to broadcast envelope", "error", err)
				}
			case err := <-s.sub.Err():
				// Closed, with a nil error, on Unsubscribe.
				if err != nil {
					s.logger.Error("Live feed subscription failed", "error", err)
				}
				return
			}
		}
	}()
}

func (s *WebDaemon) writeEnvelope(sess *melody.Session, env sample.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("Failed to marshal envelope", "error", err)
		return
	}
	if err := sess.Write(b); err != nil {
		s.logger.Warn("Failed to write envelope", "error", err)
	}
}
