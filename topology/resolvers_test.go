package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeIndexerClient struct {
	versionCalls int
	version      VersionInfo
	versionErr   error

	statuses   []DeploymentStatus
	statusErr  error
	statusCalls int

	costs   []CostModelSource
	costErr error

	pois   []PoiResult
	poiErr error
}

func (f *fakeIndexerClient) GetVersion(ctx context.Context, indexer Indexer) (VersionInfo, error) {
	f.versionCalls++
	return f.version, f.versionErr
}

func (f *fakeIndexerClient) GetIndexingStatuses(ctx context.Context, indexer Indexer, deployments []DeploymentID) ([]DeploymentStatus, error) {
	f.statusCalls++
	return f.statuses, f.statusErr
}

func (f *fakeIndexerClient) GetCostModels(ctx context.Context, indexer Indexer, deployments []DeploymentID) ([]CostModelSource, error) {
	return f.costs, f.costErr
}

func (f *fakeIndexerClient) GetPublicPoIs(ctx context.Context, indexer Indexer, requests []PoiEntry) ([]PoiResult, error) {
	return f.pois, f.poiErr
}

func TestVersionResolverCachesAcrossCalls(t *testing.T) {
	client := &fakeIndexerClient{version: VersionInfo{Version: "1.2.3", GraphNodeVersion: "0.30.0"}}
	r := NewVersionResolver(client)
	indexer := Indexer{ID: IndexerID{1}}

	info, err := r.Resolve(context.Background(), indexer)
	require.NoError(t, err)
	require.Equal(t, "1.2.3", info.Version)

	_, err = r.Resolve(context.Background(), indexer)
	require.NoError(t, err)
	require.Equal(t, 1, client.versionCalls, "second resolve should be served from cache")
}

func TestVersionResolverWrapsClientError(t *testing.T) {
	client := &fakeIndexerClient{versionErr: context.DeadlineExceeded}
	r := NewVersionResolver(client)

	_, err := r.Resolve(context.Background(), Indexer{ID: IndexerID{2}})
	require.Error(t, err)
	var ierr *IndexerError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, IndexerNoStatus, ierr.Kind)
}

func TestCheckMinimums(t *testing.T) {
	info := VersionInfo{Version: "0.20.0", GraphNodeVersion: "0.29.0"}

	require.NoError(t, CheckMinimums(info, "", ""))
	require.NoError(t, CheckMinimums(info, "0.19.0", "0.28.0"))
	require.Error(t, CheckMinimums(info, "0.21.0", ""))
	require.Error(t, CheckMinimums(info, "", "0.30.0"))
}

func TestCheckMinimumsUnparsableVersion(t *testing.T) {
	err := CheckMinimums(VersionInfo{Version: "not-a-version", GraphNodeVersion: "0.29.0"}, "", "")
	require.Error(t, err)
}

func TestProgressResolverResolveBatch(t *testing.T) {
	dep := mustDeployment(t, "QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH")
	client := &fakeIndexerClient{statuses: []DeploymentStatus{{Deployment: dep, LatestBlock: 100, EarliestBlock: 1}}}
	r := NewProgressResolver(client)
	indexer := Indexer{ID: IndexerID{1}}

	results, errs := r.ResolveBatch(context.Background(), indexer, []DeploymentID{dep})
	require.Empty(t, errs)
	require.True(t, results[dep].Fresh)
	require.EqualValues(t, 100, results[dep].LatestBlock)

	// Second call for the same deployment should be served from cache, not
	// re-issue the batched status call.
	_, _ = r.ResolveBatch(context.Background(), indexer, []DeploymentID{dep})
	require.Equal(t, 1, client.statusCalls)
}

func TestProgressResolverMissingDeploymentIsError(t *testing.T) {
	dep := mustDeployment(t, "QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH")
	client := &fakeIndexerClient{} // no statuses returned
	r := NewProgressResolver(client)

	results, errs := r.ResolveBatch(context.Background(), Indexer{ID: IndexerID{1}}, []DeploymentID{dep})
	require.Empty(t, results)
	require.Contains(t, errs, dep)
}

func TestProgressResolverBatchFetchError(t *testing.T) {
	dep := mustDeployment(t, "QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH")
	client := &fakeIndexerClient{statusErr: context.DeadlineExceeded}
	r := NewProgressResolver(client)

	_, errs := r.ResolveBatch(context.Background(), Indexer{ID: IndexerID{1}}, []DeploymentID{dep})
	require.Contains(t, errs, dep)
}
