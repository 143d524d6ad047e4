package controllers

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/julienschmidt/httprouter"
	"github.com/lintang-b-s/courierx/pkg/http/usecases"
	"go.uber.org/zap"
)

// planSession is one websocket client of the streaming planner.
type planSession struct {
	io   sync.Mutex
	conn io.ReadWriteCloser
}

func (s *planSession) readRequest() (*planRequest, error) {
	s.io.Lock()
	defer s.io.Unlock()

	for {
		h, r, err := wsutil.NextReader(s.conn, ws.StateServerSide)
		if err != nil {
			return nil, err
		}
		if h.OpCode.IsControl() {
			if err := wsutil.ControlFrameHandler(s.conn, ws.StateServerSide)(h, r); err != nil {
				return nil, err
			}
			continue
		}

		req := &planRequest{}
		if err := json.NewDecoder(r).Decode(req); err != nil {
			return nil, err
		}
		return req, nil
	}
}

func (s *planSession) write(x any) error {
	w := wsutil.NewWriter(s.conn, ws.StateServerSide, ws.OpText)
	encoder := json.NewEncoder(w)

	s.io.Lock()
	defer s.io.Unlock()

	if err := encoder.Encode(x); err != nil {
		return err
	}
	return w.Flush()
}

func (s *planSession) close() error {
	s.io.Lock()
	defer s.io.Unlock()
	return wsutil.WriteServerMessage(s.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
}

func (s *planSession) writeError(status int, message string) error {
	return s.write(wsMessage{Type: WS_MESSAGE_ERROR, Error: errorEnvelope(status, message)["error"]})
}

// wsPlan reads one plan request from the socket, streams every courier route as soon as it is final,
// then the whole plan, and closes.
func (api *plannerAPI) wsPlan(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	conn, _, hs, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		api.log.Info("upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()
	api.log.Info("established websocket connection", zap.String("connection name", nameConn(conn)),
		zap.String("protocol", hs.Protocol))

	session := &planSession{conn: conn}
	request, err := session.readRequest()
	if err != nil {
		api.log.Info("read websocket plan request", zap.Error(err))
		_ = session.writeError(http.StatusBadRequest, err.Error())
		_ = session.close()
		return
	}
	if err := api.validateRequest(*request); err != nil {
		_ = session.writeError(http.StatusBadRequest, err.Error())
		_ = session.close()
		return
	}

	result, err := api.plannerService.Plan(r.Context(), request.toPlanInput(), func(route usecases.CourierRoute) {
		if err := session.write(wsMessage{Type: WS_MESSAGE_COURIER, Data: route}); err != nil {
			api.log.Error("write courier route", zap.Int("courier", route.CourierIndex), zap.Error(err))
		}
	})
	if err != nil {
		status := statusOf(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			api.log.Error("websocket plan", zap.Error(err))
			message = http.StatusText(status)
		}
		_ = session.writeError(status, message)
		_ = session.close()
		return
	}

	if err := session.write(wsMessage{Type: WS_MESSAGE_PLAN, Data: result}); err != nil {
		api.log.Error("write plan", zap.Error(err))
		return
	}
	_ = session.close()
}

func nameConn(conn net.Conn) string {
	return conn.LocalAddr().String() + " > " + conn.RemoteAddr().String()
}
