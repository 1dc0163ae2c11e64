package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cmo/internal/contentplan"
	"cmo/internal/infra/credentials"
	"cmo/internal/providers/n8n"
	"cmo/internal/social"
)

var errNotConfigured = errors.New("integration not configured; check the environment")

var (
	keywordIdea     string
	keywordLimit    int
	keywordLocation int
	keywordLanguage string
	keywordNoSave   bool
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Research keywords for an idea and store the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(ctx context.Context, s *session) error {
			if s.services.N8N == nil {
				return errNotConfigured
			}
			res, err := s.services.N8N.ResearchKeywords(ctx, n8n.KeywordRequest{
				Idea:         keywordIdea,
				Limit:        keywordLimit,
				LocationCode: keywordLocation,
				LanguageCode: keywordLanguage,
			})
			if err != nil {
				return err
			}
			if !keywordNoSave {
				if err := s.services.Keywords.SaveKeywords(ctx, keywordIdea, res.Keywords); err != nil {
					return fmt.Errorf("store keywords: %w", err)
				}
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var (
	articleTitle    string
	articleKeyword  string
	articleLanguage string
)

var articleCmd = &cobra.Command{
	Use:   "article",
	Short: "Generate an article through the automation backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(ctx context.Context, s *session) error {
			if s.services.N8N == nil {
				return errNotConfigured
			}
			res, err := s.services.N8N.GenerateArticle(ctx, n8n.ArticleRequest{
				Title:    articleTitle,
				Keyword:  articleKeyword,
				Language: articleLanguage,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var planReq contentplan.Request

var contentPlanCmd = &cobra.Command{
	Use:   "content-plan",
	Short: "Synthesize a ranked content plan from analytics and community data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(ctx context.Context, s *session) error {
			if s.services.Planner == nil {
				return errNotConfigured
			}
			plan, err := s.services.Planner.Plan(ctx, planReq)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plan)
		})
	},
}

var (
	batchReq     social.BatchRequest
	batchEnqueue bool
)

var socialBatchCmd = &cobra.Command{
	Use:   "social-batch",
	Short: "Generate social posts from recent blog and changelog material",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(ctx context.Context, s *session) error {
			if s.services.Social == nil {
				return errNotConfigured
			}
			if batchEnqueue {
				batch, err := s.services.Social.Enqueue(ctx, batchReq)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), batch)
			}
			cands, err := s.services.Social.Generate(ctx, batchReq)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cands)
		})
	},
}

var (
	tokenProvider string
	tokenValue    string
)

var setTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store an integration token in the database",
	Long: `Store an integration token so it can be rotated without a redeploy.
Environment variables still take precedence over stored tokens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !credentials.IsKnownProvider(tokenProvider) {
			return fmt.Errorf("unknown provider %q", tokenProvider)
		}
		if strings.TrimSpace(tokenValue) == "" {
			return errors.New("token must not be empty")
		}
		s, err := openSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := credentials.NewStore(s.runner).SetToken(cmd.Context(), tokenProvider, tokenValue); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s token stored\n", tokenProvider)
		return nil
	},
}

func init() {
	keywordsCmd.Flags().StringVar(&keywordIdea, "idea", "", "Seed idea to research (required)")
	keywordsCmd.Flags().IntVar(&keywordLimit, "limit", 0, "Maximum number of keywords")
	keywordsCmd.Flags().IntVar(&keywordLocation, "location", 0, "Search location code")
	keywordsCmd.Flags().StringVar(&keywordLanguage, "language-code", "", "Search language code")
	keywordsCmd.Flags().BoolVar(&keywordNoSave, "no-save", false, "Do not store the result in keyword history")
	_ = keywordsCmd.MarkFlagRequired("idea")

	articleCmd.Flags().StringVar(&articleTitle, "title", "", "Article title")
	articleCmd.Flags().StringVar(&articleKeyword, "keyword", "", "Target keyword")
	articleCmd.Flags().StringVar(&articleLanguage, "language", "", "Article language")
	articleCmd.MarkFlagsOneRequired("title", "keyword")

	contentPlanCmd.Flags().StringVar(&planReq.Topic, "topic", "", "Topic for community research")
	contentPlanCmd.Flags().StringVar(&planReq.Period, "period", "28d", "Analytics period such as 7d, 28d or 90d")
	contentPlanCmd.Flags().StringVar(&planReq.StartDate, "start", "", "Explicit start date (YYYY-MM-DD)")
	contentPlanCmd.Flags().StringVar(&planReq.EndDate, "end", "", "Explicit end date (YYYY-MM-DD)")
	contentPlanCmd.Flags().IntVar(&planReq.MaxIdeas, "max-ideas", 0, "Maximum number of ideas")
	contentPlanCmd.Flags().IntVar(&planReq.MinPageviews, "min-pageviews", 0, "Minimum previous pageviews for decay detection")
	contentPlanCmd.Flags().StringVar(&planReq.Language, "language", "", "Language of the ideas")
	contentPlanCmd.MarkFlagsRequiredTogether("start", "end")

	socialBatchCmd.Flags().IntVar(&batchReq.Target, "target", social.DefaultTarget, "Number of posts to generate")
	socialBatchCmd.Flags().StringSliceVar(&batchReq.Platforms, "platform", nil, "Target platform, repeatable (default linkedin and x)")
	socialBatchCmd.Flags().StringVar(&batchReq.Language, "language", "", "Post language")
	socialBatchCmd.Flags().BoolVar(&batchEnqueue, "enqueue", false, "Queue the batch for the worker instead of generating now")

	setTokenCmd.Flags().StringVar(&tokenProvider, "provider", "", "Integration name: n8n, exa, openai, gemini or anthropic")
	setTokenCmd.Flags().StringVar(&tokenValue, "token", "", "Token value")
	_ = setTokenCmd.MarkFlagRequired("provider")
	_ = setTokenCmd.MarkFlagRequired("token")
}

func withServices(ctx context.Context, fn func(context.Context, *session) error) error {
	s, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
