package packet

// Message codes understood by the chat protocol.
const (
	UserList      = 0
	UserJoin      = 1
	UserPart      = 2
	RoomMessage   = 3
	RoomAction    = 4
	UserPM        = 5
	UserKick      = 6
	UserDisable   = 7
	UserBan       = 8
	UserUnban     = 9
	UserMute      = 10
	UserUnmute    = 11
	ServerDown    = 12
	IdleKick      = 13
	IPQuery       = 14
	DebugCommand  = 15
	UserTimedBan  = 16
	UserTimedMute = 17
	ModChat       = 18

	AccessGranted = 100
	AccessDenied  = 101
	LimitReached  = 102

	PMBox = 200

	ForceClear = 300
	ForceURL   = 301

	JoinRoom    = 400
	CreateRoom  = 402
	DestroyRoom = 403
	RoomList    = 404
	ForceJoin   = 405

	ClientIdle = 500
	ClientAway = 501
	ClientBack = 502

	ClientConfig = 600
	WallMessage  = 601
	StartTyping  = 602
	StopTyping   = 603
	ResetTyping  = 604
)

var codeNames = map[int]string{
	UserList:      "USER_LIST",
	UserJoin:      "USER_JOIN",
	UserPart:      "USER_PART",
	RoomMessage:   "ROOM_MESSAGE",
	RoomAction:    "ROOM_ACTION",
	UserPM:        "USER_PM",
	UserKick:      "USER_KICK",
	UserDisable:   "USER_DISABLE",
	UserBan:       "USER_BAN",
	UserUnban:     "USER_UNBAN",
	UserMute:      "USER_MUTE",
	UserUnmute:    "USER_UNMUTE",
	ServerDown:    "SERVER_DOWN",
	IdleKick:      "IDLE_KICK",
	IPQuery:       "IP_QUERY",
	DebugCommand:  "DEBUG_COMMAND",
	UserTimedBan:  "USER_TIMEDBAN",
	UserTimedMute: "USER_TIMEDMUTE",
	ModChat:       "MOD_CHAT",
	AccessGranted: "ACCESS_GRANTED",
	AccessDenied:  "ACCESS_DENIED",
	LimitReached:  "LIMIT_REACHED",
	PMBox:         "PM_BOX",
	ForceClear:    "FORCE_CLEAR",
	ForceURL:      "FORCE_URL",
	JoinRoom:      "JOIN_ROOM",
	CreateRoom:    "CREATE_ROOM",
	DestroyRoom:   "DESTROY_ROOM",
	RoomList:      "ROOM_LIST",
	ForceJoin:     "FORCE_JOIN",
	ClientIdle:    "CLIENT_IDLE",
	ClientAway:    "CLIENT_AWAY",
	ClientBack:    "CLIENT_BACK",
	ClientConfig:  "CLIENT_CONFIG",
	WallMessage:   "WALL_MESSAGE",
	StartTyping:   "START_TYPING",
	StopTyping:    "STOP_TYPING",
	ResetTyping:   "RESET_TYPING",
}

// CodeName returns a human readable name for code, used in logs.
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}
