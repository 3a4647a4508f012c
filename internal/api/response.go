package api

import (
	"time"

	"topicscanner/internal/domain"
)

type analysisResponse struct {
	ID                     string          `json:"id"`
	Query                  string          `json:"query"`
	Type                   string          `json:"type,omitempty"`
	Status                 string          `json:"status"`
	FeedURL                string          `json:"feedUrl,omitempty"`
	TotalArticlesProcessed int             `json:"totalArticlesProcessed"`
	FailureReason          string          `json:"failureReason,omitempty"`
	CreatedAt              string          `json:"createdAt"`
	Topics                 []topicResponse `json:"topics,omitempty"`
}

type topicResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	ArticleCount int               `json:"articleCount"`
	Relevance    int               `json:"relevance"`
	Articles     []articleResponse `json:"articles"`
}

type articleResponse struct {
	ExternalID string `json:"externalId"`
	Title      string `json:"title"`
	Link       string `json:"link,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// toAnalysisResponse maps the domain model to the wire shape. Summaries
// (list rows) omit topics regardless of hydration.
func toAnalysisResponse(analysis *domain.Analysis, includeTopics bool) analysisResponse {
	resp := analysisResponse{
		ID:                     analysis.ID,
		Query:                  analysis.Query,
		Type:                   string(analysis.Type),
		Status:                 string(analysis.Status),
		FeedURL:                analysis.FeedURL,
		TotalArticlesProcessed: analysis.TotalArticlesProcessed,
		FailureReason:          analysis.FailureReason,
		CreatedAt:              analysis.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !includeTopics {
		return resp
	}

	for _, topic := range analysis.Topics {
		articles := make([]articleResponse, 0, len(topic.Articles))
		for _, article := range topic.Articles {
			articles = append(articles, articleResponse{
				ExternalID: article.ExternalID,
				Title:      article.Title,
				Link:       article.Link,
				Snippet:    article.Snippet,
			})
		}
		resp.Topics = append(resp.Topics, topicResponse{
			ID:           topic.ID,
			Title:        topic.Title,
			Description:  topic.Description,
			ArticleCount: topic.ArticleCount,
			Relevance:    topic.Relevance,
			Articles:     articles,
		})
	}
	return resp
}
