package googleEmbedding

import (
	"context"
	"fmt"
	"time"

	"github.com/finsightai/finsight/internal/config"
	"github.com/finsightai/finsight/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok {
		if s.Code() == codes.ResourceExhausted {
			log.Error("Rate limit hit!", "error", err)
			return true
		}
	}
	return false
}

func getInlinedBatchRequests(chunks []string) *genai.EmbedContentBatch {
	conf := genai.EmbedContentConfig{OutputDimensionality: &dimension, TaskType: "RETRIEVAL_DOCUMENT"}
	return &genai.EmbedContentBatch{
		Config:   &conf,
		Contents: getContent(chunks),
	}
}

// pollForAnswer waits for the batch job to finish. The loop is bounded, a
// job that is still pending after BatchPollMaxAttempts ticks is abandoned
// rather than polled forever.
func (c *client) pollForAnswer(ctx context.Context, batchJobName string, log *logger_i.Logger) (*genai.BatchJob, error) {
	ticker := time.NewTicker(config.BatchPollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < config.BatchPollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			log.Error("pollForAnswer cancelled", "error", ctx.Err())
			return nil, ctx.Err()

		case <-ticker.C:
			bJob, err := c.genAi.Batches.Get(ctx, batchJobName, nil)
			if err != nil {
				log.Error("Error getting batch job", "error", err)
				continue
			}

			//https://pkg.go.dev/google.golang.org/genai@v1.41.1#JobState
			switch bJob.State {
			case "JOB_STATE_SUCCEEDED":
				log.Debug("batch job succeeded", "attempts", attempt+1)
				return bJob, nil

			case "JOB_STATE_FAILED":
				return nil, fmt.Errorf("batch embedding job failed: %s", bJob.Error.Message)

			case "JOB_STATE_CANCELLED", "JOB_STATE_EXPIRED", "JOB_STATE_PARTIALLY_SUCCEEDED":
				return nil, fmt.Errorf("batch embedding job ended prematurely: %s", bJob.State)
			}
		}
	}
	return nil, fmt.Errorf("batch embedding job %s still pending after %d polls", batchJobName, config.BatchPollMaxAttempts)
}

// downloadAnswerFromClient unpacks the inlined responses. Any failed item
// fails the whole batch, partial vectors would leave the document half
// indexed.
func downloadAnswerFromClient(answer *genai.BatchJob, log *logger_i.Logger) ([][]float32, error) {
	res := answer.Dest.InlinedEmbedContentResponses
	if len(res) == 0 {
		return nil, fmt.Errorf("batch embedding job returned no responses")
	}

	results := make([][]float32, 0, len(res))
	for i, r := range res {
		if r == nil || r.Error != nil || r.Response == nil || r.Response.Embedding == nil {
			log.Error("Failed result in batch embedding", "index", i, "result", r)
			return nil, fmt.Errorf("batch embedding item %d failed", i)
		}
		results = append(results, r.Response.Embedding.Values)
	}
	return results, nil
}
