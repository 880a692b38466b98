// Package console hosts study sessions and lesson playback in a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/study"
)

var errUnexpectedEOF = errors.New("input ended before the session completed")

// Study runs a study session for deckID, reading commands from in one line
// at a time. An empty line flips the card, 1-4 judges it, h shows the hint
// and q quits. A judgment that fails to submit can be retried.
func Study(ctx context.Context, engine *study.Engine, deckID string, in io.Reader, out io.Writer) (domain.StudyResults, error) {
	if err := engine.Load(ctx, deckID); err != nil {
		return domain.StudyResults{}, err
	}
	scanner := bufio.NewScanner(in)

	for {
		s := engine.Session()
		card, ok := s.Current()
		if !ok {
			break
		}
		if s.Flipped() {
			fmt.Fprintf(out, "\n[%d/%d] A: %s\n", s.Index()+1, s.Len(), card.Back)
			fmt.Fprintln(out, "1) Again  2) Hard  3) Good  4) Easy")
		} else {
			fmt.Fprintf(out, "\n[%d/%d] Q: %s\n", s.Index()+1, s.Len(), card.Front)
			if card.Image != "" {
				fmt.Fprintf(out, "    image: %s\n", card.Image)
			}
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return engine.Results(), err
			}
			return engine.Results(), errUnexpectedEOF
		}
		if err := ctx.Err(); err != nil {
			return engine.Results(), err
		}

		switch cmd := strings.TrimSpace(scanner.Text()); cmd {
		case "", "f":
			if err := engine.Flip(); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "h":
			if card.Hint == "" {
				fmt.Fprintln(out, "(no hint)")
			} else {
				fmt.Fprintf(out, "hint: %s\n", card.Hint)
			}
		case "q":
			fmt.Fprintln(out, "Session abandoned.")
			return engine.Results(), nil
		default:
			d, err := domain.ParseDifficulty(cmd)
			if err != nil {
				fmt.Fprintf(out, "unknown command %q\n", cmd)
				continue
			}
			if err := engine.Judge(ctx, d); err != nil {
				fmt.Fprintf(out, "error: %v (try again)\n", err)
			}
		}
	}

	r := engine.Results()
	printResults(out, r)
	return r, nil
}

func printResults(out io.Writer, r domain.StudyResults) {
	if r.TotalCards == 0 {
		fmt.Fprintln(out, "No cards due.")
		return
	}
	fmt.Fprintf(out, "\nSession complete: %d cards\n", r.TotalCards)
	fmt.Fprintf(out, "  Again %d  Hard %d  Good %d  Easy %d\n", r.AgainCount, r.HardCount, r.GoodCount, r.EasyCount)
}
