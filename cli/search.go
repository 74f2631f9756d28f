package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sanchitsharma77/airweave-sub002/chunker"
	"github.com/sanchitsharma77/airweave-sub002/common"
	"github.com/sanchitsharma77/airweave-sub002/db"
	"github.com/sanchitsharma77/airweave-sub002/destination"
	"github.com/sanchitsharma77/airweave-sub002/multiplex"
	"github.com/sanchitsharma77/airweave-sub002/search"
)

var (
	searchSyncID   string
	searchStrategy string
	searchLimit    int
	searchAnswer   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [collection-id] [query]",
	Short: "search a collection through its active destination",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		collectionID, query := args[0], args[1]

		collection, err := db.NewCollectionStore(app.DB).Get(ctx, collectionID)
		if err != nil {
			return err
		}

		// Queries are served by the sync's ACTIVE slot only.
		slots, err := app.SlotStore.ListBySync(ctx, searchSyncID)
		if err != nil {
			return err
		}
		active := multiplex.ActiveSlot(slots)
		if active == nil {
			return common.NewError(common.KindNotFound, "sync %s has no active destination", searchSyncID)
		}
		creds, shortName, cfg, err := connectionFor(ctx, app, active.ConnectionID)
		if err != nil {
			return err
		}
		reg, ok := app.Destinations.Lookup(shortName)
		if !ok {
			return fmt.Errorf("destination %q not registered", shortName)
		}
		dest, err := reg.Factory(ctx, creds, cfg, collection.ID, collection.VectorSize)
		if err != nil {
			return err
		}

		tokenizer, err := chunker.NewTokenizer()
		if err != nil {
			return err
		}
		embedder, err := buildEmbedder(app, collection.EmbeddingModelName, collection.VectorSize)
		if err != nil {
			return err
		}

		var llm search.LLM
		if model, err := openai.New(); err == nil {
			llm = search.NewLangchainLLM(model)
		} else {
			app.Logger.WithError(err).Warn("no LLM configured, LLM search operations disabled")
		}

		executor := search.NewExecutor(app.Defaults, tokenizer, embedder, llm, app.Logger)
		req := search.Request{
			Query:             query,
			CollectionID:      collection.ID,
			RetrievalStrategy: destination.SearchStrategy(searchStrategy),
			Limit:             searchLimit,
		}
		if cmd.Flags().Changed("answer") {
			req.GenerateAnswer = &searchAnswer
		}

		response, err := executor.Search(ctx, req, dest)
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchSyncID, "sync", "", "sync id whose active slot serves the query")
	searchCmd.Flags().StringVar(&searchStrategy, "strategy", "", "retrieval strategy: hybrid, neural, keyword")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results")
	searchCmd.Flags().BoolVar(&searchAnswer, "answer", false, "generate a grounded answer")
	searchCmd.MarkFlagRequired("sync")
	RootCmd.AddCommand(searchCmd)
}
