package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const tokenCookieName = "token"

// Client is one websocket connection. Outbound messages are buffered;
// the room drops the client rather than block on a full buffer.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	token    string
	playerID string
}

func (c *Client) readPump(room *Room) {
	defer func() {
		room.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		room.inbound <- envelope{client: c, msg: msg}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// serveWS upgrades the connection and hands it to the room. A session
// token cookie, when present, lets the room re-attach the connection to
// its existing player.
func serveWS(cfg *Config, room *Room) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		token := ""
		if cookie, err := r.Cookie(tokenCookieName); err == nil {
			token = cookie.Value
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:  conn,
			send:  make(chan any, 32),
			token: token,
		}

		room.register <- client

		go client.writePump()
		client.readPump(room)
	}
}

// qrHandler generates a PNG QR code for the join URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /quiz/qr; strip the trailing "/qr" to get the join URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func serveQuizPage(cfg *Config, room *Room) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(newPage("Quiz Time", room.quizName)))
	}
}

// registerQuizGame sets up routes so that:
//   - $path       → placeholder page for the client to mount on
//   - $path/ws    → WebSocket carrying the whole game protocol
//   - $path/qr    → PNG QR code for the join URL
func registerQuizGame(cfg *Config, path string, mux *httprouter.Router) error {
	quizName, questions, err := loadQuiz(quizFile)
	if err != nil {
		return err
	}

	room := newRoom(cfg, quizName, questions)
	go room.run()

	mux.GET(cfg.prefix+path, serveQuizPage(cfg, room))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, room))

	mux.GET(cfg.prefix+path+"/qr", qrHandler)

	return nil
}
