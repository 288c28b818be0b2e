package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/smartcaller/qualification-engine/internal/rules"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockReasoner implements Reasoner on top of the Bedrock Converse API.
// The model is instructed to answer with a single JSON object matching the
// Assessment wire shape.
type BedrockReasoner struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockReasoner wraps a Bedrock runtime client.
func NewBedrockReasoner(api bedrockConverseAPI, modelID string) *BedrockReasoner {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	if strings.TrimSpace(modelID) == "" {
		panic("conversation: bedrock model id cannot be empty")
	}
	return &BedrockReasoner{api: api, modelID: modelID}
}

const bedrockMaxTokens = 1024

// Assess renders the transcript and policy into a Converse call and parses
// the model's JSON verdict.
func (r *BedrockReasoner) Assess(ctx context.Context, req AssessRequest) (Assessment, error) {
	system := []brtypes.SystemContentBlock{
		&brtypes.SystemContentBlockMemberText{Value: qualificationSystemPrompt(req.Policy, req.State)},
	}

	messages := make([]brtypes.Message, 0, len(req.Transcript))
	for _, turn := range req.Transcript {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch turn.Role {
		case ChatRoleUser:
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		case ChatRoleAssistant:
			messages = append(messages, brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: content},
				},
			})
		default:
			return Assessment{}, fmt.Errorf("conversation: unsupported role %q", turn.Role)
		}
	}

	out, err := r.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  aws.String(r.modelID),
		System:   system,
		Messages: messages,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens: aws.Int32(bedrockMaxTokens),
		},
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("conversation: bedrock converse failed: %w", err)
	}

	text, err := bedrockOutputText(out)
	if err != nil {
		return Assessment{}, err
	}

	return parseAssessmentJSON(text)
}

func bedrockOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", errors.New("conversation: empty bedrock response")
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("conversation: unexpected bedrock output type")
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("conversation: bedrock response had no text content")
	}
	return sb.String(), nil
}

// parseAssessmentJSON tolerates models that wrap the JSON object in prose or
// markdown fences.
func parseAssessmentJSON(text string) (Assessment, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Assessment{}, fmt.Errorf("conversation: no JSON object in reasoner output")
	}
	var out Assessment
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return Assessment{}, fmt.Errorf("conversation: failed to parse reasoner output: %w", err)
	}
	return out, nil
}

func qualificationSystemPrompt(policy rules.Policy, state QualificationState) string {
	var sb strings.Builder
	sb.WriteString("Tu es un agent de qualification de leads pour un commercial. ")
	sb.WriteString("Tu converses en français, de façon brève et naturelle, pour déterminer si le prospect est qualifié.\n\n")

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString("\n")
		for _, item := range items {
			sb.WriteString("- ")
			sb.WriteString(item)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	writeList("Critères indispensables :", policy.MustHave)
	writeList("Critères rédhibitoires (disqualifient immédiatement) :", policy.DealBreaker)
	writeList("Critères appréciés :", policy.NiceToHave)

	stateJSON, _ := json.Marshal(state)
	sb.WriteString("État de qualification actuel : ")
	sb.Write(stateJSON)
	sb.WriteString("\n\n")

	sb.WriteString("Réponds UNIQUEMENT avec un objet JSON de la forme :\n")
	sb.WriteString(`{"response_utterance": string, "qualification_patch": {"is_qualified": bool?, "score": int?, "urgency": "low"|"medium"|"high"?, "need_detected": string?, "reasons": [string]?}, "propose_meeting": bool, "end_conversation": bool}` + "\n")
	sb.WriteString("Mets propose_meeting à true quand le prospect est qualifié et prêt pour un rendez-vous. ")
	sb.WriteString("Mets end_conversation à true quand la conversation doit se terminer sans rendez-vous.")
	return sb.String()
}
