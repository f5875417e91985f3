package signal

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			deadline := time.Now().Add(c.opts.WriteWait)
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case ev := <-c.send:
			data, err := c.opts.Codec.Encode(ev)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("event", ev.EventName()).Msg("writePump encode")
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(c.opts.Codec.MessageType(), data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
			log.Debug().Str("module", "signal").Str("event", ev.EventName()).Msg("sent")
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		c.shutdown()
		c.closeEvents()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Error().Err(err).Str("module", "signal").Msg("readPump read error")
			}
			return
		}
		ev, err := c.opts.Codec.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Msg("dropping undecodable event")
			continue
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
