package timetable

// Reservation 表示一个教学班在课表中的位置 (day, room, time)
type Reservation struct {
	Day  int `json:"day"`
	Room int `json:"room"`
	Time int `json:"time"`
}

// Codec 负责 Reservation 与整数编码之间的双向转换
// code = room + rooms*time + rooms*dayHours*day
type Codec struct {
	rooms    int
	dayHours int
}

func NewCodec(rooms int, dayHours int) Codec {
	return Codec{rooms: rooms, dayHours: dayHours}
}

func (c Codec) Encode(r Reservation) int {
	return r.Room + c.rooms*r.Time + c.rooms*c.dayHours*r.Day
}

func (c Codec) Decode(code int) Reservation {
	daySize := c.rooms * c.dayHours
	rest := code % daySize
	return Reservation{
		Day:  code / daySize,
		Room: rest % c.rooms,
		Time: rest / c.rooms,
	}
}
