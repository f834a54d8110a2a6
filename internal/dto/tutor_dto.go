package dto

// TutorAskRequest is a free-form study question.
type TutorAskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// TutorAskResponse is the tutor's reply.
type TutorAskResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
}
