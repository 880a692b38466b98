package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/playback"
	"github.com/conorfennell/knolstudy/internal/videoquiz"
)

// WatchSummary is the outcome of a watched lesson.
type WatchSummary struct {
	Points               int
	Answered             int
	Correct              int
	AllRequiredCompleted bool
}

// Watch plays lessonID on player and overlays its quizzes. Input is only
// consumed while a quiz is shown: a number answers, s skips an optional quiz
// and an empty line continues after the result. Lines typed ahead wait for
// the next quiz. Watch returns when the video ends with no quiz open, or
// when input runs out while playback is stopped for a quiz.
func Watch(ctx context.Context, engine *videoquiz.Engine, player *playback.Player, lessonID string, tick time.Duration, in io.Reader, out io.Writer) (WatchSummary, error) {
	if err := engine.Load(ctx, lessonID); err != nil {
		return WatchSummary{}, err
	}
	m := engine.Machine()
	fmt.Fprintf(out, "Lesson %s: %d quizzes, %.0fs\n", lessonID, len(m.Quizzes()), player.Duration())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)
	ticks := player.Ticks(ctx, tick)
	player.Play()

	var queue []string
	inputDone := false
	for {
		queue = handleInput(ctx, engine, queue, out)

		open := engine.State() != videoquiz.Watching
		if ticks == nil && (!open || (inputDone && len(queue) == 0)) {
			break
		}
		if open && inputDone && len(queue) == 0 && !player.Playing() {
			fmt.Fprintln(out, "input closed with a quiz open")
			break
		}

		select {
		case <-ctx.Done():
			return summarize(engine), ctx.Err()
		case pos, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			if q, triggered := engine.ObserveTime(pos); triggered {
				printQuiz(out, q, engine.Machine().CanSkip())
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				inputDone = true
				continue
			}
			queue = append(queue, line)
		}
	}

	s := summarize(engine)
	fmt.Fprintf(out, "\nLesson finished: %d points, %d/%d correct\n", s.Points, s.Correct, s.Answered)
	if s.AllRequiredCompleted {
		fmt.Fprintln(out, "All required quizzes completed.")
	} else {
		fmt.Fprintln(out, "Some required quizzes are still unanswered.")
	}
	return s, nil
}

// handleInput applies queued lines while a quiz is open and returns what
// is left.
func handleInput(ctx context.Context, engine *videoquiz.Engine, queue []string, out io.Writer) []string {
	for len(queue) > 0 {
		state := engine.State()
		if state == videoquiz.Watching {
			return queue
		}
		cmd := strings.TrimSpace(queue[0])
		queue = queue[1:]

		switch {
		case state == videoquiz.QuizAnswered:
			if err := engine.Continue(); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case cmd == "s":
			if err := engine.Skip(); err != nil {
				if errors.Is(err, videoquiz.ErrSkipNotAllowed) {
					fmt.Fprintln(out, "This quiz is required.")
					continue
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
		default:
			n, err := strconv.Atoi(cmd)
			if err != nil {
				fmt.Fprintf(out, "enter an option number\n")
				continue
			}
			res, err := engine.SubmitAnswer(ctx, n-1)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printResult(out, res)
		}
	}
	return queue
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func printQuiz(out io.Writer, q domain.VideoQuiz, canSkip bool) {
	fmt.Fprintf(out, "\n[%.0fs] %s", q.Timestamp, q.Question)
	if q.Points > 0 {
		fmt.Fprintf(out, " (%d points)", q.Points)
	}
	fmt.Fprintln(out)
	for i, opt := range q.Options {
		fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
	}
	if canSkip {
		fmt.Fprintln(out, "  s) skip")
	}
}

func printResult(out io.Writer, res domain.QuizAnswerResult) {
	if res.IsCorrect {
		fmt.Fprintf(out, "Correct! +%d\n", res.PointsAwarded)
	} else {
		fmt.Fprintf(out, "Incorrect. The answer was %d.\n", res.CorrectAnswer+1)
	}
	if res.Explanation != "" {
		fmt.Fprintln(out, res.Explanation)
	}
	fmt.Fprintln(out, "(press enter to continue)")
}

func summarize(engine *videoquiz.Engine) WatchSummary {
	m := engine.Machine()
	s := WatchSummary{Points: m.Points(), AllRequiredCompleted: engine.AllRequiredCompleted()}
	for _, q := range m.Quizzes() {
		if !q.IsAnswered {
			continue
		}
		s.Answered++
		if q.IsCorrect != nil && *q.IsCorrect {
			s.Correct++
		}
	}
	return s
}
