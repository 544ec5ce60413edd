package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"story-server/internal/model"
)

// Типы сообщений, которые сервер публикует в тему "stories".
const (
	TypeStoryUpdate   = "story_update"
	TypeStoryError    = "story_error"
	TypeStoryComplete = "story_complete"

	// TopicStories — тема прогресса генерации историй; клиенты
	// подписываются на нее автоматически при подключении.
	TopicStories = "stories"
)

// TokenVerifier проверяет токен из query-параметра и возвращает личность
// подключающегося пользователя.
type TokenVerifier func(token string) (*model.Identity, error)

// Manager управляет WebSocket-соединениями
type Manager struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	verify     TokenVerifier
	mu         sync.RWMutex
}

// Client представляет WebSocket-клиента
type Client struct {
	ID       uuid.UUID
	Username string
	Conn     *websocket.Conn
	Manager  *Manager
	Send     chan []byte

	// topics меняет readPump клиента, а читает цикл рассылки менеджера
	topicsMu sync.Mutex
	topics   map[string]bool
}

// Message представляет сообщение для отправки через WebSocket
type Message struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
	Target  string      `json:"target,omitempty"` // имя пользователя или "broadcast"
}

// Настройки для WebSocket-соединения
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене следует настроить проверку на разрешенные источники
	},
}

// NewManager создает новый экземпляр Manager
func NewManager(verify TokenVerifier) *Manager {
	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message),
		verify:     verify,
	}
}

// Start запускает Manager в отдельной горутине
func (m *Manager) Start() {
	go m.run()
}

// run обрабатывает все операции Manager
func (m *Manager) run() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			m.clients[client.ID] = client
			m.mu.Unlock()
			log.Debug().Str("client", client.ID.String()).Str("username", client.Username).Msg("WebSocket: клиент подключен")

		case client := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[client.ID]; ok {
				close(client.Send)
				delete(m.clients, client.ID)
				log.Debug().Str("client", client.ID.String()).Msg("WebSocket: клиент отключен")
			}
			m.mu.Unlock()

		case message := <-m.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Error().Err(err).Msg("WebSocket: ошибка маршалинга сообщения")
				continue
			}

			// В зависимости от цели, отправляем сообщение конкретному пользователю или всем
			m.mu.Lock()
			for _, client := range m.clients {
				if !client.IsSubscribed(message.Topic) {
					continue
				}
				if message.Target != "" && message.Target != "broadcast" && client.Username != message.Target {
					continue
				}
				select {
				case client.Send <- data:
				default:
					// Медленный клиент — отключаем, конвейер не ждет
					close(client.Send)
					delete(m.clients, client.ID)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Handler обрабатывает новые WebSocket-соединения. Токен передается
// query-параметром, потому что браузерный WebSocket API не умеет заголовки.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.verify(r.URL.Query().Get("token"))
		if err != nil || identity == nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("WebSocket: ошибка апгрейда соединения")
			return
		}

		client := &Client{
			ID:       uuid.New(),
			Username: identity.Username,
			Conn:     conn,
			Manager:  m,
			Send:     make(chan []byte, 256),
			topics:   make(map[string]bool),
		}

		// Подписываем клиента на канал прогресса генерации
		client.Subscribe(TopicStories)

		m.register <- client

		go client.readPump()
		go client.writePump()
	})
}

// SendToUser отправляет сообщение конкретному пользователю
func (m *Manager) SendToUser(username, messageType, topic string, payload interface{}) {
	m.broadcast <- Message{
		Type:    messageType,
		Topic:   topic,
		Payload: payload,
		Target:  username,
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам, подписанным на указанную тему
func (m *Manager) Broadcast(messageType, topic string, payload interface{}) {
	m.broadcast <- Message{
		Type:    messageType,
		Topic:   topic,
		Payload: payload,
		Target:  "broadcast",
	}
}

// readPump обрабатывает входящие сообщения от клиента
func (c *Client) readPump() {
	defer func() {
		c.Manager.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("WebSocket: ошибка чтения")
			}
			break
		}

		// Обрабатываем команды от клиента (подписка/отписка от тем)
		var cmd struct {
			Action string `json:"action"`
			Topic  string `json:"topic"`
		}

		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Debug().Err(err).Msg("WebSocket: ошибка разбора команды")
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.Subscribe(cmd.Topic)
		case "unsubscribe":
			c.Unsubscribe(cmd.Topic)
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Канал закрыт, отправляем сообщение о закрытии
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Добавляем в очередь сообщения, которые ожидают отправки
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Subscribe подписывает клиента на тему
func (c *Client) Subscribe(topic string) {
	c.topicsMu.Lock()
	c.topics[topic] = true
	c.topicsMu.Unlock()
}

// Unsubscribe отписывает клиента от темы
func (c *Client) Unsubscribe(topic string) {
	c.topicsMu.Lock()
	delete(c.topics, topic)
	c.topicsMu.Unlock()
}

// IsSubscribed проверяет, подписан ли клиент на тему
func (c *Client) IsSubscribed(topic string) bool {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	return c.topics[topic]
}
