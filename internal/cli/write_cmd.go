package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"museflow/internal/feedback"
	"museflow/internal/models"
	"museflow/internal/writing"
)

const (
	cmdSubmit = ":submit"
	cmdSave   = ":save"
	cmdQuit   = ":quit"
)

func newWriteCmd(app *App) *cobra.Command {
	var resumeID string
	cmd := &cobra.Command{
		Use:   "write <topic-id>",
		Short: "Write on a topic with autosave, then submit for feedback",
		Long: "Reads the text line by line from stdin. Drafts are saved after a quiet period.\n" +
			"Commands on a line of their own: " + cmdSubmit + " finishes and requests feedback, " +
			cmdSave + " saves now, " + cmdQuit + " saves and exits.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd.Context(), app, cmd.OutOrStdout(), args[0], resumeID)
		},
	}
	cmd.Flags().StringVar(&resumeID, "resume", "", "Continue an existing draft")
	return cmd
}

func runWrite(ctx context.Context, app *App, out io.Writer, topicID, resumeID string) error {
	topic, err := app.Client.Topic(ctx, topicID)
	if err != nil {
		return fmt.Errorf("loading topic: %w", err)
	}

	content := ""
	if resumeID != "" {
		ws, err := app.Client.Session(ctx, resumeID)
		if err != nil {
			return fmt.Errorf("loading draft: %w", err)
		}
		if ws.Status == models.StatusCompleted {
			return writing.ErrSessionCompleted
		}
		if ws.TopicID != topic.ID {
			return fmt.Errorf("draft %s belongs to topic %s", ws.ID, ws.TopicID)
		}
		content = ws.Content
	}

	opts := []writing.Option{
		writing.WithLogger(app.logger()),
		writing.WithStatusHook(func(st writing.SaveStatus) {
			if !st.Saving {
				if s := formatStatus(st); s != "" {
					fmt.Fprintln(out, s)
				}
			}
		}),
	}
	if app.QuietPeriod > 0 {
		opts = append(opts, writing.WithQuietPeriod(app.QuietPeriod))
	}
	ctrl := writing.NewController(app.Client, opts...)
	defer ctrl.Close()

	summary := models.TopicSummary{ID: topic.ID, Title: topic.Title, Prompt: topic.Prompt, Category: topic.Category}
	ctrl.Start(summary, resumeID, content)

	fmt.Fprintln(out, formatTopic(topic))
	fmt.Fprintln(out, styleDim.Render(fmt.Sprintf("逐行输入。%s 提交并获取反馈，%s 立即保存，%s 保存并退出。", cmdSubmit, cmdSave, cmdQuit)))
	if content != "" {
		fmt.Fprintln(out, content)
	}

	text := content
	sc := bufio.NewScanner(app.In)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if app.Interactive {
			fmt.Fprint(out, "> ")
		}
		if !sc.Scan() {
			break
		}
		line := sc.Text()
		switch strings.TrimSpace(line) {
		case cmdSubmit:
			done, err := submit(ctx, ctrl, app, out, topic.Prompt)
			if done || err != nil {
				return err
			}
			continue
		case cmdSave:
			// Failures are already printed by the status hook.
			_ = ctrl.Save(ctx)
			continue
		case cmdQuit:
			return finish(ctx, ctrl, text)
		}
		next := line
		if text != "" {
			next = text + "\n" + line
		}
		switch err := ctrl.Update(next); {
		case err == nil:
			text = next
		case errors.Is(err, writing.ErrSessionCompleted):
			fmt.Fprintln(out, styleYellow.Render(fmt.Sprintf("作品已提交，输入 %s 重新获取反馈或 %s 退出", cmdSubmit, cmdQuit)))
		default:
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return finish(ctx, ctrl, text)
}

// submit returns done=false when writing goes on: the text is too short or
// the submit failed and can be retried.
// Anonymous writers still get feedback; it just is not stored.
func submit(ctx context.Context, ctrl *writing.Controller, app *App, out io.Writer, prompt string) (bool, error) {
	res, err := ctrl.Submit(ctx, app.Client)
	switch {
	case errors.Is(err, writing.ErrContentTooShort):
		fmt.Fprintln(out, styleYellow.Render(fmt.Sprintf("至少写 %d 个字再提交", writing.DefaultMinSubmit)))
		return false, nil
	case errors.Is(err, writing.ErrAuthRequired):
		ws, _ := ctrl.Snapshot()
		res, err = app.Client.GenerateFeedback(ctx, ws.Content, prompt)
		if err != nil {
			return true, err
		}
		fmt.Fprint(out, formatFeedback(res))
		fmt.Fprintln(out, styleDim.Render("登录后可保存作品和反馈"))
		return true, nil
	case err != nil && res.Feedback.Encouragement == "":
		// The text stays in the controller; :submit again retries the save
		// and the review.
		app.logger().Warn("cli: submit failed", zap.Error(err))
		fmt.Fprintln(out, styleRed.Render("提交失败: "+err.Error()))
		fmt.Fprintln(out, styleDim.Render(fmt.Sprintf("可以继续写作，输入 %s 重试", cmdSubmit)))
		return false, nil
	}
	fmt.Fprint(out, formatFeedback(res))
	if err != nil {
		app.logger().Warn("cli: feedback not recorded", zap.Error(err))
		fmt.Fprintln(out, styleRed.Render("反馈未能保存: "+err.Error()))
	}
	return true, nil
}

func finish(ctx context.Context, ctrl *writing.Controller, text string) error {
	if strings.TrimSpace(text) == "" || !ctrl.Dirty() {
		return nil
	}
	err := ctrl.Save(ctx)
	if errors.Is(err, writing.ErrAuthRequired) {
		// Already shown to the user; the text is still on their screen.
		return nil
	}
	return err
}

func feedbackResult(fb models.Feedback) feedback.Result {
	return feedback.Result{Feedback: fb, Fallback: fb.IsFallback}
}
