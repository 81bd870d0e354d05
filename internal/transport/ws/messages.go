package ws

// Типы событий realtime-канала.
const (
	TypeJoin    = "join"    // вход в диалог: подписка + viewing
	TypeMessage = "message" // чат-сообщение (в обе стороны)
	TypeLeave   = "leave"   // выход из диалога

	TypeStatus        = "status"         // уведомление остальным участникам группы
	TypeLeaveResponse = "leave_response" // подтверждение выхода самому ушедшему
	TypeError         = "error"          // ошибка исходному соединению
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// JoinPayload / LeavePayload: клиент адресует участника отображаемым именем,
// сервер резолвит его через справочник пользователей.
type JoinPayload struct {
	RoomID          string `json:"room_id"`
	ParticipantName string `json:"participant_name"`
}

type ChatPayload struct {
	RoomID          string `json:"room_id"`
	ParticipantName string `json:"participant_name"`
	MessageText     string `json:"message_text"`
	RecipientName   string `json:"recipient_name"`
}

type LeavePayload struct {
	RoomID          string `json:"room_id"`
	ParticipantName string `json:"participant_name"`
}

// MessageOut рассылается всем подписчикам комнаты, включая отправителя —
// так порядок в его собственной ленте совпадает с порядком у собеседника.
type MessageOut struct {
	SenderName    string `json:"sender_name"`
	Text          string `json:"text"`
	RecipientName string `json:"recipient_name"`
	Timestamp     string `json:"timestamp"`
	RoomID        string `json:"room_id"`
}

type StatusPayload struct {
	Message string `json:"message"`
}

type LeaveResponsePayload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
