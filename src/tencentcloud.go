package deployns

import (
	"context"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	dnspod "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"
)

const tencentPageSize = 3000

// DescribeRecordList answers an empty result with this error code.
const tencentNoRecords = "ResourceNotFound.NoDataOfRecord"

// TencentCloudProvider manages records on Tencent Cloud DNSPod. Batch writes
// run as jobs which are polled until they finish.
type TencentCloudProvider struct {
	client *dnspod.Client
	log    logr.Logger
}

func NewTencentCloudProvider(env map[string]string, log logr.Logger) (DNSProvider, error) {
	id := env["TENCENT_CLOUD_SECRET_ID"]
	if id == "" {
		return nil, errors.New("tencent-cloud: missing TENCENT_CLOUD_SECRET_ID")
	}
	key := env["TENCENT_CLOUD_SECRET_KEY"]
	if key == "" {
		return nil, errors.New("tencent-cloud: missing TENCENT_CLOUD_SECRET_KEY")
	}
	cpf := profile.NewClientProfile()
	if v := env["TENCENT_CLOUD_ENDPOINT"]; v != "" {
		cpf.HttpProfile.Endpoint = v
	}
	client, err := dnspod.NewClient(common.NewCredential(id, key), env["TENCENT_CLOUD_REGION"], cpf)
	if err != nil {
		return nil, errors.Wrap(err, "tencent-cloud: create client")
	}
	return &TencentCloudProvider{client: client, log: log}, nil
}

func (s *TencentCloudProvider) Name() string { return "tencent-cloud" }

func (s *TencentCloudProvider) DefaultLineMap() LineMap {
	return LineMap{
		LineChinaTelecom: "电信",
		LineChinaUnicom:  "联通",
		LineChinaMobile:  "移动",
		LineCERNET:       "教育网",
		LinePengboshi:    "鹏博士",
		LineCSTNET:       "科技网",
	}
}

func (s *TencentCloudProvider) GetRecords(ctx context.Context, domain string, q RecordQuery) ([]RemoteRecord, error) {
	req := dnspod.NewDescribeRecordListRequest()
	req.Domain = common.StringPtr(domain)
	if q.Type != "" {
		req.RecordType = common.StringPtr(q.Type)
	}
	if q.Line != "" {
		req.RecordLine = common.StringPtr(q.Line)
	}
	if q.Name != "" {
		req.Subdomain = common.StringPtr(q.Name)
	}
	req.Limit = common.Uint64Ptr(tencentPageSize)

	result := make([]RemoteRecord, 0)
	for offset := uint64(0); ; {
		req.Offset = common.Uint64Ptr(offset)
		resp, err := s.client.DescribeRecordListWithContext(ctx, req)
		if err != nil {
			var sdkErr *sdkerrors.TencentCloudSDKError
			if errors.As(err, &sdkErr) && sdkErr.GetCode() == tencentNoRecords {
				break
			}
			return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
		}
		for _, item := range resp.Response.RecordList {
			result = append(result, tencentRemoteRecord(item))
		}

		offset += uint64(len(resp.Response.RecordList))
		var total uint64
		if info := resp.Response.RecordCountInfo; info != nil && info.TotalCount != nil {
			total = *info.TotalCount
		}
		if len(resp.Response.RecordList) == 0 || offset >= total {
			break
		}
	}
	return result, nil
}

func (s *TencentCloudProvider) AddRecords(ctx context.Context, domain string, records []DNSRecord) error {
	if len(records) == 0 {
		return nil
	}
	domainID, err := s.domainID(ctx, domain)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}

	req := dnspod.NewCreateRecordBatchRequest()
	req.DomainIdList = []*string{common.StringPtr(domainID)}
	req.RecordList = tencentBatchRecords(records)
	resp, err := s.client.CreateRecordBatchWithContext(ctx, req)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: errors.Wrap(err, "create record batch")}
	}
	return s.waitForBatch(ctx, domain, resp.Response.JobId)
}

func (s *TencentCloudProvider) RemoveRecords(ctx context.Context, domain string, ids []string) error {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	req := dnspod.NewDeleteRecordBatchRequest()
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: errors.Errorf("invalid record id %q", id)}
		}
		req.RecordIdList = append(req.RecordIdList, common.Uint64Ptr(n))
	}
	resp, err := s.client.DeleteRecordBatchWithContext(ctx, req)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: errors.Wrap(err, "delete record batch")}
	}
	return s.waitForBatch(ctx, domain, resp.Response.JobId)
}

func (s *TencentCloudProvider) waitForBatch(ctx context.Context, domain string, jobID *uint64) error {
	if jobID == nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: errors.New("batch accepted without a job id")}
	}
	t := jobTarget{provider: s.Name(), domain: domain, jobID: strconv.FormatUint(*jobID, 10)}
	s.log.Info("waiting for batch job", "jobID", t.jobID)
	return waitForJob(ctx, s.log, t, func(ctx context.Context) (JobStatus, error) {
		req := dnspod.NewDescribeBatchTaskRequest()
		req.JobId = jobID
		resp, err := s.client.DescribeBatchTaskWithContext(ctx, req)
		if err != nil {
			return JobStatus{}, err
		}
		return JobStatus{
			Total:     int(uint64Value(resp.Response.TotalCount)),
			Succeeded: int(uint64Value(resp.Response.SuccessCount)),
			Failed:    int(uint64Value(resp.Response.FailCount)),
		}, nil
	})
}

func (s *TencentCloudProvider) domainID(ctx context.Context, domain string) (string, error) {
	req := dnspod.NewDescribeDomainRequest()
	req.Domain = common.StringPtr(domain)
	resp, err := s.client.DescribeDomainWithContext(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "describe domain")
	}
	if resp.Response.DomainInfo == nil || resp.Response.DomainInfo.DomainId == nil {
		return "", errors.Errorf("domain %s not found", domain)
	}
	return strconv.FormatUint(*resp.Response.DomainInfo.DomainId, 10), nil
}

func tencentBatchRecords(records []DNSRecord) []*dnspod.AddRecordBatch {
	result := make([]*dnspod.AddRecordBatch, 0, len(records))
	for _, set := range GroupRecords(records) {
		for _, line := range set.Lines {
			for _, v := range line.Values {
				result = append(result, &dnspod.AddRecordBatch{
					SubDomain:  common.StringPtr(set.Name),
					RecordType: common.StringPtr(set.Type),
					Value:      common.StringPtr(v),
					RecordLine: common.StringPtr(line.Line),
					TTL:        common.Uint64Ptr(uint64(line.TTL)),
				})
			}
		}
	}
	return result
}

func tencentRemoteRecord(item *dnspod.RecordListItem) RemoteRecord {
	return RemoteRecord{
		ID: strconv.FormatUint(uint64Value(item.RecordId), 10),
		DNSRecord: DNSRecord{
			Name:  stringValue(item.Name),
			Type:  stringValue(item.Type),
			Value: stringValue(item.Value),
			Line:  stringValue(item.Line),
			TTL:   int(uint64Value(item.TTL)),
		},
	}
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func uint64Value(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}
