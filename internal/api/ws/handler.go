package ws

import (
	"errors"
	"image"
	"net/http"
	"sync"
	"time"

	apihttp "github.com/GriffinCanCode/AgentOS/artwork/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/domain/artwork"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Handler manages WebSocket connections. Each connection owns one artwork
// session.
type Handler struct {
	service  *artwork.Service
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(service *artwork.Service, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Cross-origin access is governed by CORS on the REST side;
			// sessions carry no credentials
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request and serves the session until the
// client disconnects
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	sess, err := h.service.Open()
	if err != nil {
		h.logger.Warn("rejecting websocket session", zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	cc := &connection{
		id:      id.NewConnID(),
		conn:    conn,
		session: sess,
		handler: h,
		send:    make(chan *Response, sendBuffer),
		done:    make(chan struct{}),
		logger: h.logger.With(
			zap.String("session", sess.ID().String()),
		),
	}
	cc.logger = cc.logger.With(zap.String("conn", cc.id.String()))

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	cc.logger.Debug("websocket connected")

	go cc.writeLoop()
	cc.enqueue(&Response{Type: TypeSession, Session: sess.ID().String()})
	cc.readLoop()

	cc.close()
	h.service.Close(sess.ID())
	cc.logger.Debug("websocket disconnected")
}

type connection struct {
	id      id.ConnID
	conn    *websocket.Conn
	session *artwork.Session
	handler *Handler
	logger  *zap.Logger

	send      chan *Response
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *connection) readLoop() {
	cc.conn.SetReadLimit(utils.MaxMessageBytes)
	_ = cc.conn.SetReadDeadline(time.Now().Add(pongWait))
	cc.conn.SetPongHandler(func(string) error {
		return cc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cc.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			cc.record("in", "invalid")
			cc.enqueue(&Response{Type: TypeError, Error: "invalid message"})
			continue
		}
		cc.record("in", label(msg.Type))
		cc.dispatch(msg)
	}
}

func (cc *connection) dispatch(msg Message) {
	switch msg.Type {
	case TypeArtwork:
		cc.handleArtwork(msg)
	case TypePage:
		cc.handlePage(msg)
	case TypePing:
		cc.enqueue(&Response{Type: TypePong, Seq: msg.Seq})
	default:
		cc.enqueue(&Response{Type: TypeError, Seq: msg.Seq, Error: "unknown message type"})
	}
}

func (cc *connection) handleArtwork(msg Message) {
	if err := apihttp.ValidateImages(msg.Images); err != nil {
		cc.enqueue(&Response{Type: TypeError, Seq: msg.Seq, Error: err.Error()})
		return
	}

	seq := msg.Seq
	err := cc.session.Request(apihttp.ToImages(msg.Images), func(img image.Image) {
		cc.enqueue(&Response{Type: TypeArtwork, Seq: seq, Found: img != nil, img: img})
	})
	if err != nil {
		cc.enqueue(&Response{Type: TypeError, Seq: seq, Error: err.Error()})
	}
}

func (cc *connection) handlePage(msg Message) {
	if err := utils.ValidateURL(msg.URL, "url"); err != nil {
		cc.enqueue(&Response{Type: TypeError, Seq: msg.Seq, Error: err.Error()})
		return
	}

	seq := msg.Seq
	err := cc.session.RequestPage(msg.URL, func(page *artwork.PageArtwork, err error) {
		resp := &Response{Type: TypePage, Seq: seq}
		if page != nil {
			resp.PageURL = page.PageURL
			resp.Title = page.Title
			resp.Candidates = page.Candidates
			resp.Found = page.Image != nil
			resp.img = page.Image
		}
		if err != nil && !errors.Is(err, artwork.ErrNoArtwork) {
			resp.Error = err.Error()
		}
		cc.enqueue(resp)
	})
	if err != nil {
		cc.enqueue(&Response{Type: TypeError, Seq: seq, Error: err.Error()})
	}
}

// enqueue hands resp to the writer. It never blocks past connection close.
func (cc *connection) enqueue(resp *Response) {
	select {
	case cc.send <- resp:
	case <-cc.done:
	}
}

func (cc *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case resp := <-cc.send:
			if err := cc.write(resp); err != nil {
				cc.logger.Debug("websocket write failed", zap.Error(err))
				cc.close()
				return
			}
		case <-ticker.C:
			_ = cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cc.close()
				return
			}
		case <-cc.done:
			return
		}
	}
}

func (cc *connection) write(resp *Response) error {
	if resp.img != nil {
		enc, err := artwork.Encode(resp.img)
		if err != nil {
			resp.Found = false
			resp.Error = err.Error()
		} else {
			resp.Image = enc.DataURL()
			resp.Width = enc.Width
			resp.Height = enc.Height
			resp.ETag = enc.ETag
		}
	}

	data, err := sonic.Marshal(resp)
	if err != nil {
		return err
	}

	_ = cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := cc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	cc.record("out", resp.Type)
	return nil
}

// label bounds metric cardinality to known message types
func label(msgType string) string {
	switch msgType {
	case TypeArtwork, TypePage, TypePing:
		return msgType
	}
	return "unknown"
}

func (cc *connection) record(direction, msgType string) {
	if cc.handler.metrics != nil {
		cc.handler.metrics.RecordWSMessage(direction, msgType)
	}
}

func (cc *connection) close() {
	cc.closeOnce.Do(func() {
		close(cc.done)
		cc.conn.Close()
	})
}
