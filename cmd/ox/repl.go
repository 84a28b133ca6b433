// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"

	"github.com/chzyer/readline"

	"ox/internal/chat"
	"ox/internal/commands"
	"ox/internal/ui"
)

func runREPL(ctx context.Context, a *app, session *chat.Session, console *ui.Console, debug bool) error {
	a.log.Debug().Msg("running interactive session")

	history := ui.OpenHistory(a.cfg.CommandHistoryFile, 0)
	cmdRegistry := commands.NewRegistry(&debug)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "You> ",
		AutoComplete:           commandCompleter(cmdRegistry.Names()),
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		DisableAutoSaveHistory: true,
		FuncFilterInputRune:    filterInterruptRune,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	for _, entry := range history.Entries() {
		_ = rl.SaveHistory(entry)
	}

	replCtx, stop := context.WithCancel(ctx)
	defer stop()
	canceler := &operationCanceler{}
	watchInterrupts(replCtx, canceler)

	console.Welcome(a.box.Root())

	for {
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineContinue:
			continue
		case readlineExit:
			return finishREPL(a, history, console)
		}
		if err != nil {
			return err
		}

		line = sanitizeInputLine(line)
		if line == "" {
			continue
		}
		if history.Add(line) {
			_ = rl.SaveHistory(line)
		}
		if isExitWord(line) {
			return finishREPL(a, history, console)
		}
		if commands.IsCommand(line) {
			if cmdRegistry.Execute(line, session, console) {
				return finishREPL(a, history, console)
			}
			continue
		}

		ask(replCtx, session, console, canceler, line)
	}
}

func ask(ctx context.Context, session *chat.Session, console *ui.Console, canceler *operationCanceler, line string) {
	askCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	canceler.Set(cancel)
	defer canceler.Clear()

	console.StartStatus("Agent is thinking...")
	_, err := session.Ask(askCtx, line, func(ev chat.Event) {
		console.HandleEvent(ev, false)
	})
	console.StopStatus()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		console.Error("Request cancelled")
	default:
		console.Error(err.Error())
	}
}

func finishREPL(a *app, history *ui.History, console *ui.Console) error {
	if err := history.Save(); err != nil {
		a.log.Warn().Err(err).Msg("failed to save command history")
	}
	console.Exit()
	a.log.Info().Msg("session ended")
	return nil
}
