package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/evalgo/gphotoctl/internal/cache"
	"github.com/evalgo/gphotoctl/internal/catalog"
	"github.com/evalgo/gphotoctl/internal/logging"
	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/rpcclient"
	"github.com/evalgo/gphotoctl/internal/safety"
	"github.com/evalgo/gphotoctl/internal/store"
)

// NativeRPCAdapter dispatches native-rpc.* operations (and the advanced
// provider's manual rpc_execute bypass) against the remote batchexecute
// endpoint, grounded on gptk_methods.py / gptk_parser.py via the catalog
// package. A session cache sits in front of the durable store so repeated
// calls for the same account don't round-trip Postgres on every request.
type NativeRPCAdapter struct {
	client *rpcclient.Client
	store  *store.Store
	cache  *cache.SessionCache
}

func NewNativeRPCAdapter(client *rpcclient.Client, st *store.Store, sc *cache.SessionCache) *NativeRPCAdapter {
	return &NativeRPCAdapter{client: client, store: st, cache: sc}
}

func (a *NativeRPCAdapter) CanHandle(p model.Provider) bool {
	return p == model.ProviderNativeRPC || p == model.ProviderAdvanced
}

func (a *NativeRPCAdapter) Run(ctx context.Context, account *model.Account, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	jar, err := decodeCookieJar(account.CookieJar)
	if err != nil {
		return nil, fmt.Errorf("nativerpc: decode cookie jar: %w", err)
	}
	session, err := a.loadSession(ctx, account)
	if err != nil {
		return nil, err
	}

	if job.Provider == model.ProviderAdvanced {
		return a.runAdvanced(ctx, account, jar, session, job, dryRun, report)
	}
	return a.runGptk(ctx, account, jar, session, job, dryRun, report)
}

func (a *NativeRPCAdapter) runGptk(ctx context.Context, account *model.Account, jar []model.Cookie, session *model.SessionState, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	method, err := catalog.ResolveGptkMethod(job.Operation)
	if err != nil {
		return nil, err
	}
	if method.Destructive {
		if !safety.IsDestructive(job.Operation) {
			return nil, fmt.Errorf("nativerpc: operation %q marked destructive in the catalog but not in the safety gate, refusing", job.Operation)
		}
		confirmed, _ := job.Params["confirmed"].(bool)
		if !confirmed {
			return nil, fmt.Errorf("nativerpc: operation %q is destructive and requires params.confirmed=true", job.Operation)
		}
	}

	report(0.1, fmt.Sprintf("building request for %s", job.Operation))
	args := method.Build(job.Params)

	if dryRun {
		report(1.0, "dry run: request built, not sent")
		return model.JSONMap{"dryRun": true, "rpcid": method.RPCID, "args": args}, nil
	}

	report(0.3, fmt.Sprintf("executing rpcid %s", method.RPCID))
	node, newSession, err := a.client.Execute(ctx, jar, session, method.RPCID, args, method.SourcePathHint)
	a.persistSession(ctx, account.ID, newSession)
	if err != nil {
		return nil, fmt.Errorf("nativerpc: execute %s: %w", job.Operation, err)
	}

	report(0.8, "parsing response")
	parsed := catalog.ParseResponse(method.RPCID, node)
	report(1.0, "done")
	return model.JSONMap{"rpcid": method.RPCID, "operation": job.Operation, "result": parsed}, nil
}

// runAdvanced is the escape hatch for operations the catalog doesn't (yet)
// cover: a caller supplies the rpcid and requestData directly. Unlike gptk
// operations, the safety gate cannot classify an arbitrary rpcid, so every
// non-dry-run advanced call requires params.confirmed=true regardless of
// rpcid.
func (a *NativeRPCAdapter) runAdvanced(ctx context.Context, account *model.Account, jar []model.Cookie, session *model.SessionState, job *model.Job, dryRun bool, report ProgressFunc) (model.JSONMap, error) {
	if job.Operation != "advanced.rpc_execute" && job.Operation != "rpc_execute" {
		return nil, fmt.Errorf("nativerpc: advanced provider only supports rpc_execute, got %q", job.Operation)
	}
	rpcid, _ := job.Params["rpcid"].(string)
	if rpcid == "" {
		return nil, fmt.Errorf("nativerpc: advanced.rpc_execute requires params.rpcid")
	}
	confirmed, _ := job.Params["confirmed"].(bool)
	if !confirmed && !dryRun {
		return nil, fmt.Errorf("nativerpc: advanced.rpc_execute requires params.confirmed=true")
	}
	requestData := job.Params["requestData"]
	sourcePath, _ := job.Params["sourcePath"].(string)
	forceBootstrap, _ := job.Params["forceBootstrap"].(bool)

	if forceBootstrap {
		report(0.1, "forcing session bootstrap")
		bootstrapped, err := a.client.Bootstrap(ctx, jar, sourcePath)
		if err != nil {
			return nil, fmt.Errorf("nativerpc: forced bootstrap: %w", err)
		}
		session = bootstrapped
		if !dryRun {
			a.persistSession(ctx, account.ID, session)
		}
	}

	if dryRun {
		report(1.0, "dry run: manual rpc call not sent")
		return model.JSONMap{"dryRun": true, "rpcid": rpcid, "requestData": requestData}, nil
	}

	report(0.3, fmt.Sprintf("executing manual rpcid %s", rpcid))
	node, newSession, err := a.client.Execute(ctx, jar, session, rpcid, requestData, sourcePath)
	a.persistSession(ctx, account.ID, newSession)
	if err != nil {
		return nil, fmt.Errorf("nativerpc: advanced execute %s: %w", rpcid, err)
	}
	parsed := catalog.ParseResponse(rpcid, node)
	report(1.0, "done")
	return model.JSONMap{"rpcid": rpcid, "result": parsed}, nil
}

func (a *NativeRPCAdapter) loadSession(ctx context.Context, account *model.Account) (*model.SessionState, error) {
	if a.cache != nil {
		if raw, ok := a.cache.Get(ctx, account.ID); ok {
			var s model.SessionState
			if err := json.Unmarshal([]byte(raw), &s); err == nil {
				return &s, nil
			}
		}
	}
	if len(account.SessionRaw) == 0 {
		return &model.SessionState{}, nil
	}
	var s model.SessionState
	if err := json.Unmarshal(account.SessionRaw, &s); err != nil {
		return nil, fmt.Errorf("nativerpc: decode session state: %w", err)
	}
	return &s, nil
}

func (a *NativeRPCAdapter) persistSession(ctx context.Context, accountID string, session *model.SessionState) {
	if session == nil {
		return
	}
	raw, err := json.Marshal(session)
	if err != nil {
		logging.Logger.WithError(err).Warn("nativerpc: marshal session state")
		return
	}
	if err := a.store.UpdateSession(ctx, accountID, raw); err != nil {
		logging.Logger.WithError(err).Warn("nativerpc: persist session state")
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, accountID, string(raw)); err != nil {
			logging.Logger.WithError(err).Warn("nativerpc: cache session state")
		}
	}
}

func decodeCookieJar(raw json.RawMessage) ([]model.Cookie, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("cookie jar is empty")
	}
	var jar []model.Cookie
	if err := json.Unmarshal(raw, &jar); err != nil {
		return nil, err
	}
	return jar, nil
}
