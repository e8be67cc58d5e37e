package notes

import (
	"context"
	"strings"

	"github.com/MimeLyc/video-note/internal/apperror"
	"github.com/MimeLyc/video-note/internal/config"
)

// Notewriter turns transcript text into a note. instructions replaces the default prompt when set.
type Notewriter interface {
	Generate(ctx context.Context, text, instructions string) (string, error)
}

const defaultPrompt = `请根据以下字幕内容生成结构化的学习笔记。要求：

1. 提取主要观点和关键信息
2. 按逻辑顺序组织内容
3. 使用清晰的标题和子标题
4. 突出重要概念和术语
5. 如果有具体的步骤或方法，请列出详细步骤
6. 在适当的地方添加总结

请用中文输出，格式要清晰易读。

字幕内容：
`

// BuildPrompt wraps text in the custom instructions, or in the default study-notes prompt.
func BuildPrompt(text, instructions string) string {
	if strings.TrimSpace(instructions) != "" {
		return instructions + "\n\n以下是需要处理的字幕内容：\n" + text
	}
	return defaultPrompt + "\n" + text
}

// New returns the Notewriter for the configured provider. A provider that cannot be
// built yields a writer whose every call fails with a Config error, so the rest of
// the application keeps working without notes.
func New(cfg config.NotesConfig) Notewriter {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return unavailable{err: apperror.New(apperror.Config, "notes provider API key is not configured").
			WithContext("provider", cfg.Provider)}
	}

	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderGemini:
		return newOpenAIWriter(cfg)
	case config.ProviderAnthropic:
		return newAnthropicWriter(cfg)
	case config.ProviderCustom:
		w, err := newCustomWriter(cfg)
		if err != nil {
			return unavailable{err: apperror.Wrap(err, apperror.Config, "invalid custom notes provider")}
		}
		return w
	default:
		return unavailable{err: apperror.New(apperror.Config, "unsupported notes provider").WithContext("provider", cfg.Provider)}
	}
}

type unavailable struct {
	err error
}

func (u unavailable) Generate(context.Context, string, string) (string, error) {
	return "", u.err
}

// checkText rejects transcripts with nothing to summarize.
func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperror.New(apperror.Validation, "subtitle text is empty")
	}
	return nil
}

func noteFailure(err error, provider string) error {
	return apperror.Wrap(err, apperror.NoteFailure, "note generation failed").WithContext("provider", provider)
}
