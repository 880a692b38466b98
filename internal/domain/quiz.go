package domain

// VideoQuiz is a question shown over a lesson video at a fixed playback time.
// The answer fields are only populated once the learner has answered it.
type VideoQuiz struct {
	ID            string   `json:"id"`
	LessonID      string   `json:"lessonId,omitempty"`
	Timestamp     float64  `json:"timestamp"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	Points        int      `json:"points"`
	IsRequired    bool     `json:"isRequired"`
	PauseVideo    bool     `json:"pauseVideo"`
	IsAnswered    bool     `json:"isAnswered,omitempty"`
	UserAnswer    *int     `json:"userAnswer,omitempty"`
	IsCorrect     *bool    `json:"isCorrect,omitempty"`
	CorrectAnswer *int     `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuizAnswerResult is returned by the quiz store after an answer is submitted.
type QuizAnswerResult struct {
	IsCorrect     bool   `json:"isCorrect"`
	CorrectAnswer int    `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
	PointsAwarded int    `json:"pointsAwarded"`
}

// MarkAnswered returns a copy of q carrying the learner's answer and its result.
func (q VideoQuiz) MarkAnswered(answer int, res QuizAnswerResult) VideoQuiz {
	correct := res.IsCorrect
	correctAnswer := res.CorrectAnswer
	q.IsAnswered = true
	q.UserAnswer = &answer
	q.IsCorrect = &correct
	q.CorrectAnswer = &correctAnswer
	q.Explanation = res.Explanation
	return q
}

// QuizDefinition is the authoring form of a quiz, including its answer key.
type QuizDefinition struct {
	ID            string   `yaml:"id" validate:"required,excludesall=/"`
	Timestamp     float64  `yaml:"timestamp" validate:"gte=0"`
	Question      string   `yaml:"question" validate:"required"`
	Options       []string `yaml:"options" validate:"min=2,dive,required"`
	CorrectAnswer int      `yaml:"correct_answer" validate:"gte=0"`
	Points        int      `yaml:"points" validate:"gte=0"`
	Required      bool     `yaml:"required"`
	PauseVideo    bool     `yaml:"pause_video"`
	Explanation   string   `yaml:"explanation"`
}

// Lesson groups the quizzes overlaid on one lesson video.
type Lesson struct {
	ID      string           `yaml:"lesson" validate:"required,excludesall=/"`
	Title   string           `yaml:"title"`
	Quizzes []QuizDefinition `yaml:"quizzes" validate:"dive"`
}
