package game

// Outbound event names (engine → gateway → client)
const (
	EventMatchFound          = "match:found"
	EventFFMatchFound        = "ff:match_found"
	EventQuestionNew         = "question:new"
	EventScoreUpdate         = "score:update"
	EventFFNewQuestion       = "ff:new_question"
	EventFFPlayerAnswered    = "ff:player_answered"
	EventFFPointAwarded      = "ff:point_awarded"
	EventFFQuestionTimeout   = "ff:question_timeout"
	EventFFGameEnd           = "ff:game_end"
	EventAnswerFeedback      = "answer:feedback"
	EventPracticeStarted     = "practice:started"
	EventPracticeFinished    = "practice:finished"
	EventPracticeError       = "practice:error"
	EventTimeAttackStarted   = "time_attack:started"
	EventTimeAttackScore     = "time_attack:score_update"
	EventTimeAttackFinished  = "time_attack:finished"
	EventTimeAttackError     = "time_attack:error"
	EventGroupGameStarted    = "group_game:started"
	EventGroupGameScore      = "group_game:score_update"
	EventGroupGameFinished   = "group_game:finished"
	EventParticipantFinished = "participant:finished"
	EventGameEnd             = "game:end"
	EventGameError           = "game:error"
)

// Inbound event names (client → gateway → engine)
const (
	InboundAnswerSubmit       = "answer:submit"
	InboundQuestionSkip       = "question:skip"
	InboundPracticeNext       = "practice:next_question"
	InboundTimeAttackNext     = "time_attack:request_next_question"
	InboundQuickDuelFirst     = "quickduel:request_first_question"
	InboundRegisterParticipant = "game:register-participant"
)
