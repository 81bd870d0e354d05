package domain

// User — справочные данные участника из каталога пользователей маркетплейса.
// Сервис чата их только читает.
type User struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

// UnknownUserID подставляется вместо участника, удалённого внешним процессом.
const UnknownUserID = "unknown"

// UnknownUser возвращает заглушку для удалённого участника.
func UnknownUser() User {
	return User{ID: UnknownUserID, Name: "Unknown"}
}
