package websocket

// historyRing — ограниченный буфер последних сообщений комнаты.
// Живет только пока комната не опустела; это не персистентная история.
// Не потокобезопасен сам по себе: защищается мьютексом комнаты
type historyRing struct {
	cap     int
	entries []MessageRecord
}

func newHistoryRing(cap int) *historyRing {
	if cap <= 0 {
		cap = 1
	}
	return &historyRing{cap: cap}
}

// Append добавляет запись, вытесняя самую старую при переполнении
func (r *historyRing) Append(rec MessageRecord) {
	if len(r.entries) == r.cap {
		copy(r.entries, r.entries[1:])
		r.entries[len(r.entries)-1] = rec
		return
	}
	r.entries = append(r.entries, rec)
}

// Snapshot возвращает копию в хронологическом порядке
func (r *historyRing) Snapshot() []MessageRecord {
	out := make([]MessageRecord, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *historyRing) Len() int {
	return len(r.entries)
}
