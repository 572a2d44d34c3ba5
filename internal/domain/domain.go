package domain

import (
	"github.com/yungbote/tutorbridge-backend/internal/domain/tutor"
)

// Flat alias surface so callers can import one package as `types`.

type (
	Role               = tutor.Role
	Message            = tutor.Message
	Target             = tutor.Target
	SessionState       = tutor.SessionState
	QuizStatus         = tutor.QuizStatus
	QuizQuestionRecord = tutor.QuizQuestionRecord
	QuizSession        = tutor.QuizSession
	Checkpoint         = tutor.Checkpoint
	Document           = tutor.Document
)

const (
	RoleHuman     = tutor.RoleHuman
	RoleAssistant = tutor.RoleAssistant
	RoleSystem    = tutor.RoleSystem

	TargetChat      = tutor.TargetChat
	TargetQuiz      = tutor.TargetQuiz
	TargetDocument  = tutor.TargetDocument
	TargetTerminate = tutor.TargetTerminate

	QuizStatusGeneratingFirstQuestion = tutor.QuizStatusGeneratingFirstQuestion
	QuizStatusAwaitingAnswer          = tutor.QuizStatusAwaitingAnswer
	QuizStatusEvaluatingAnswer        = tutor.QuizStatusEvaluatingAnswer
	QuizStatusCompleted               = tutor.QuizStatusCompleted
	QuizStatusError                   = tutor.QuizStatusError

	CheckpointKindConversation = tutor.CheckpointKindConversation
	CheckpointKindQuiz         = tutor.CheckpointKindQuiz
	CheckpointEncodingVersion  = tutor.CheckpointEncodingVersion
	MessageEncodingVersion     = tutor.MessageEncodingVersion
)

var (
	NewSessionState           = tutor.NewSessionState
	NewHumanMessage           = tutor.NewHumanMessage
	NewAssistantMessage       = tutor.NewAssistantMessage
	NewSystemMessage          = tutor.NewSystemMessage
	ParseTarget               = tutor.ParseTarget
	NewConversationCheckpoint = tutor.NewConversationCheckpoint
	NewQuizCheckpoint         = tutor.NewQuizCheckpoint
	DecodeSessionState        = tutor.DecodeSessionState
	DecodeQuizSession         = tutor.DecodeQuizSession
)
