package main

// TargetView is the wire form of one active target.
type TargetView struct {
	ID        string  `json:"id"`
	Archetype string  `json:"archetype"`
	State     string  `json:"state"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	Lives     int     `json:"lives"`
}

// StateMessage is broadcast to the subscriber once per tick.
type StateMessage struct {
	Type       string       `json:"type"`
	Session    string       `json:"session"`
	Tick       uint64       `json:"tick"`
	Targets    []TargetView `json:"targets"`
	Score      int          `json:"score"`
	Level      int          `json:"level"`
	Ammo       int          `json:"ammo"`
	Over       bool         `json:"over"`
	Reason     string       `json:"reason,omitempty"`
	ServerTime int64        `json:"serverTime"`
}

// clientMessage is anything the client sends over the socket.
type clientMessage struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	SentAt int64   `json:"sentAt"`
}

// joinResponse answers POST /join.
type joinResponse struct {
	Session string  `json:"session"`
	Mode    string  `json:"mode"`
	Seed    string  `json:"seed"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// heartbeatMessage acknowledges a client heartbeat.
type heartbeatMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// errorMessage reports a rejected client action.
type errorMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
