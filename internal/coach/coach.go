// Package coach holds the interviewer: screening questions, answer feedback,
// and the final-round question flow with synthesized speech.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/amanullahtanweer/interview-coach/internal/interview"
)

const (
	OpeningQuestion  = "What is your greatest strength?"
	ClosingStatement = "Thank you for your responses. That concludes our interview today. We'll be in touch soon with next steps."
	FallbackQuestion = "Could you tell me more about your experience?"

	DefaultRole       = "software developer"
	DefaultScreenRole = "generic software developer"
	DefaultExperience = "unspecified experience level"
	DefaultSkills     = "various technical skills"
)

var (
	numberPrefix = regexp.MustCompile(`^[\d]+\.\s*`)
	jsonObject   = regexp.MustCompile(`\{[\s\S]*\}`)
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer turns interviewer text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config configures a Service.
type Config struct {
	Generator   Generator
	Synthesizer Synthesizer // optional; questions are then delivered without audio
	TurnBudget  int
	Logger      *slog.Logger
}

// Service implements interview.Dialogue and the screening round.
type Service struct {
	gen    Generator
	synth  Synthesizer
	budget int
	logger *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Generator == nil {
		return nil, errors.New("coach: generator is required")
	}
	if cfg.TurnBudget <= 0 {
		cfg.TurnBudget = interview.DefaultTurnBudget
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		gen:    cfg.Generator,
		synth:  cfg.Synthesizer,
		budget: cfg.TurnBudget,
		logger: cfg.Logger,
	}, nil
}

// TurnBudget returns the number of candidate answers before the closing statement.
func (s *Service) TurnBudget() int {
	return s.budget
}

// Profile describes the candidate for the screening round.
type Profile struct {
	Role       string
	Experience string
	Skills     string
}

func (p Profile) withDefaults() Profile {
	if strings.TrimSpace(p.Role) == "" {
		p.Role = DefaultScreenRole
	}
	if strings.TrimSpace(p.Experience) == "" {
		p.Experience = DefaultExperience
	}
	if strings.TrimSpace(p.Skills) == "" {
		p.Skills = DefaultSkills
	}
	return p
}

// ScreeningQuestions asks the model for five tailored screening questions.
func (s *Service) ScreeningQuestions(ctx context.Context, p Profile) ([]string, error) {
	p = p.withDefaults()
	prompt := fmt.Sprintf("Generate a numbered list of 5 unique and thought-provoking screening interview questions "+
		"tailored for a candidate applying for a '%s' position with '%s' experience, highlighting skills like '%s'. "+
		"Avoid generic questions. Each question should start with the number and a period.",
		p.Role, p.Experience, p.Skills)

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate screening questions: %w", err)
	}
	questions := ParseQuestionList(text)
	if len(questions) == 0 {
		return nil, errors.New("No questions generated")
	}
	return questions, nil
}

// ParseQuestionList splits a numbered list into its items, one per non-empty line.
func ParseQuestionList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(numberPrefix.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Feedback is the coach's assessment of a screening answer.
type Feedback struct {
	Assessment   string          `json:"assessment"`
	Strength     string          `json:"strength"`
	Improvement  string          `json:"improvement"`
	ScoreOutOf10 json.RawMessage `json:"scoreOutOf10"`
}

// Score returns the numeric score when the model sent one.
func (f Feedback) Score() (float64, bool) {
	var n float64
	if err := json.Unmarshal(f.ScoreOutOf10, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(f.ScoreOutOf10, &s); err == nil {
		var v float64
		if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &v); err == nil {
			return v, true
		}
	}
	return 0, false
}

// ScreeningFeedback grades an answer to a screening question.
func (s *Service) ScreeningFeedback(ctx context.Context, question, answer string) (Feedback, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return Feedback{}, errors.New("Missing question or answer")
	}
	prompt := "You are an expert interview coach. Provide feedback and a score out of 10 for the following answer. " +
		"Return ONLY a JSON object with keys: assessment, strength, improvement, scoreOutOf10.\n\n" +
		fmt.Sprintf("Interview Question: %q\nCandidate's Answer: %q", question, answer)

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return Feedback{}, fmt.Errorf("generate feedback: %w", err)
	}
	return ParseFeedback(text)
}

// ParseFeedback extracts the feedback object from a model reply.
func ParseFeedback(text string) (Feedback, error) {
	match := jsonObject.FindString(text)
	if match == "" {
		return Feedback{}, errors.New("Failed to parse feedback JSON")
	}
	var fb Feedback
	if err := json.Unmarshal([]byte(match), &fb); err != nil {
		return Feedback{}, fmt.Errorf("Failed to parse feedback JSON: %w", err)
	}
	return fb, nil
}

// Start implements interview.Dialogue.
func (s *Service) Start(ctx context.Context, role string) (interview.Opening, error) {
	return interview.Opening{Text: OpeningQuestion, Audio: s.speak(ctx, OpeningQuestion)}, nil
}

// Next implements interview.Dialogue. Once the candidate has answered
// TurnBudget times the closing statement is returned.
func (s *Service) Next(ctx context.Context, history []interview.Turn, role string) (interview.FollowUp, error) {
	answers := 0
	last := ""
	for _, t := range history {
		if !t.Speaker.Valid() {
			return interview.FollowUp{}, interview.NewFault(interview.DialogueFault, interview.ReasonInvalidSpeaker,
				"coach.next", fmt.Sprintf("unknown speaker %q in history", t.Speaker))
		}
		if t.Speaker == interview.SpeakerCandidate {
			answers++
			last = t.Text
		}
	}

	if answers >= s.budget {
		return interview.FollowUp{
			Text:    ClosingStatement,
			Audio:   s.speak(ctx, ClosingStatement),
			Closing: true,
		}, nil
	}

	question, err := s.followUp(ctx, last, role)
	if err != nil {
		return interview.FollowUp{}, err
	}
	return interview.FollowUp{Text: question, Audio: s.speak(ctx, question)}, nil
}

func (s *Service) followUp(ctx context.Context, answer, role string) (string, error) {
	if strings.TrimSpace(role) == "" {
		role = DefaultRole
	}
	prompt := fmt.Sprintf("You are an interviewer for a %s position. \n"+
		"The candidate just answered: %q. \n"+
		"Based on their response, ask a single thoughtful follow-up interview question. \n"+
		"Make your question natural and conversational. \n"+
		"Return ONLY the question text without any additional context.", role, answer)

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate follow-up: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackQuestion, nil
	}
	return text, nil
}

// speak synthesizes text; failures yield nil audio.
func (s *Service) speak(ctx context.Context, text string) []byte {
	if s.synth == nil || text == "" {
		return nil
	}
	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warn("speech synthesis failed", "err", err)
		return nil
	}
	return audio
}
