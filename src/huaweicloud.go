package deployns

import (
	"context"
	"strings"

	"github.com/go-logr/logr"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/auth/basic"
	coreregion "github.com/huaweicloud/huaweicloud-sdk-go-v3/core/region"
	dns "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/model"
	region "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/region"
	"github.com/pkg/errors"
)

const (
	huaweiDefaultRegion = "cn-north-4"
	huaweiPageSize      = 500
)

// HuaweiCloudProvider manages record sets on Huawei Cloud DNS. A record set
// holds every value of one name, type and line, so the records it reports
// share the set's id.
type HuaweiCloudProvider struct {
	client *dns.DnsClient
	log    logr.Logger
	zones  map[string]string
}

func NewHuaweiCloudProvider(env map[string]string, log logr.Logger) (DNSProvider, error) {
	ak := env["HUAWEICLOUD_SDK_AK"]
	if ak == "" {
		return nil, errors.New("huawei-cloud: missing HUAWEICLOUD_SDK_AK")
	}
	sk := env["HUAWEICLOUD_SDK_SK"]
	if sk == "" {
		return nil, errors.New("huawei-cloud: missing HUAWEICLOUD_SDK_SK")
	}
	regionID := env["HUAWEICLOUD_SDK_REGION"]
	if regionID == "" {
		regionID = huaweiDefaultRegion
	}

	var reg *coreregion.Region
	if endpoint := env["HUAWEICLOUD_SDK_ENDPOINT"]; endpoint != "" {
		reg = coreregion.NewRegion(regionID, endpoint)
	} else {
		r, err := huaweiRegion(regionID)
		if err != nil {
			return nil, err
		}
		reg = r
	}

	auth := basic.NewCredentialsBuilder().
		WithAk(ak).WithSk(sk).Build()
	client := dns.NewDnsClient(
		dns.DnsClientBuilder().
			WithRegion(reg).
			WithCredential(auth).Build())
	return &HuaweiCloudProvider{client: client, log: log, zones: make(map[string]string)}, nil
}

// region.ValueOf panics on an unknown id.
func huaweiRegion(id string) (r *coreregion.Region, err error) {
	defer func() {
		if recover() != nil {
			err = errors.Errorf("huawei-cloud: unknown region %q", id)
		}
	}()
	return region.ValueOf(id), nil
}

func (s *HuaweiCloudProvider) Name() string { return "huawei-cloud" }

func (s *HuaweiCloudProvider) DefaultLineMap() LineMap {
	return LineMap{
		LineChinaTelecom: "Dianxin",
		LineChinaUnicom:  "Liantong",
		LineChinaMobile:  "Yidong",
		LineCERNET:       "Jiaoyuwang",
	}
}

func (s *HuaweiCloudProvider) zoneID(domain string) (string, error) {
	if id, ok := s.zones[domain]; ok {
		return id, nil
	}
	name := fqdn(domain)
	zone, err := s.client.ListPublicZones(&model.ListPublicZonesRequest{
		Name: &name,
	})
	if err != nil {
		return "", err
	}
	if zone.Zones != nil {
		for _, z := range *zone.Zones {
			if z.Id != nil && z.Name != nil && strings.EqualFold(*z.Name, name) {
				s.zones[domain] = *z.Id
				return *z.Id, nil
			}
		}
	}
	return "", errors.Errorf("zone %s not found", domain)
}

func (s *HuaweiCloudProvider) GetRecords(ctx context.Context, domain string, q RecordQuery) ([]RemoteRecord, error) {
	zoneID, err := s.zoneID(domain)
	if err != nil {
		return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
	}

	req := &model.ShowRecordSetByZoneRequest{ZoneId: zoneID}
	if q.Type != "" {
		req.Type = &q.Type
	}
	if q.Line != "" {
		req.LineId = &q.Line
	}
	if q.Name != "" {
		name := recordFQDN(q.Name, domain)
		req.Name = &name
	}
	limit := int32(huaweiPageSize)
	req.Limit = &limit

	result := make([]RemoteRecord, 0)
	for offset := int32(0); ; {
		if err := ctx.Err(); err != nil {
			return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
		}
		o := offset
		req.Offset = &o
		resp, err := s.client.ShowRecordSetByZone(req)
		if err != nil {
			return nil, &ProviderQueryError{Provider: s.Name(), Domain: domain, Err: err}
		}
		var page []model.ShowRecordSetByZoneResp
		if resp.Recordsets != nil {
			page = *resp.Recordsets
		}
		for _, v := range page {
			result = append(result, huaweiRemoteRecords(domain, v)...)
		}

		offset += int32(len(page))
		var total int32
		if resp.Metadata != nil && resp.Metadata.TotalCount != nil {
			total = *resp.Metadata.TotalCount
		}
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return result, nil
}

func (s *HuaweiCloudProvider) AddRecords(ctx context.Context, domain string, records []DNSRecord) error {
	if len(records) == 0 {
		return nil
	}
	zoneID, err := s.zoneID(domain)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}
	for _, set := range GroupRecords(records) {
		if err := ctx.Err(); err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
		}
		_, err := s.client.CreateRecordSetWithBatchLines(&model.CreateRecordSetWithBatchLinesRequest{
			ZoneId: zoneID,
			Body:   huaweiBatchLinesReq(domain, set),
		})
		if err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain,
				Err: errors.Wrapf(err, "create %s %s", set.Name, set.Type)}
		}
		s.log.V(1).Info("created record set", "name", set.Name, "type", set.Type, "lines", len(set.Lines))
	}
	return nil
}

func (s *HuaweiCloudProvider) RemoveRecords(ctx context.Context, domain string, ids []string) error {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	zoneID, err := s.zoneID(domain)
	if err != nil {
		return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain, Err: err}
		}
		_, err := s.client.DeleteRecordSets(&model.DeleteRecordSetsRequest{
			ZoneId:      zoneID,
			RecordsetId: id,
		})
		if err != nil {
			return &ProviderWriteError{Provider: s.Name(), Domain: domain,
				Err: errors.Wrapf(err, "delete record set %s", id)}
		}
		s.log.V(1).Info("deleted record set", "id", id)
	}
	return nil
}

func huaweiBatchLinesReq(domain string, set RecordSet) *model.CreateRSetBatchLinesReq {
	lines := make([]model.BatchCreateRecordSetWithLine, 0, len(set.Lines))
	for _, l := range set.Lines {
		ttl := int32(l.TTL)
		values := append([]string(nil), l.Values...)
		lines = append(lines, model.BatchCreateRecordSetWithLine{
			Line:    l.Line,
			Ttl:     &ttl,
			Records: values,
		})
	}
	return &model.CreateRSetBatchLinesReq{
		Name:  recordFQDN(set.Name, domain),
		Type:  set.Type,
		Lines: lines,
	}
}

// huaweiRemoteRecords expands a record set into one record per value.
func huaweiRemoteRecords(domain string, v model.ShowRecordSetByZoneResp) []RemoteRecord {
	if v.Id == nil || v.Name == nil || v.Type == nil || v.Records == nil {
		return nil
	}
	base := DNSRecord{
		Name: recordLabel(*v.Name, domain),
		Type: *v.Type,
	}
	if v.Line != nil {
		base.Line = *v.Line
	}
	if v.Ttl != nil {
		base.TTL = int(*v.Ttl)
	}
	result := make([]RemoteRecord, 0, len(*v.Records))
	for _, value := range *v.Records {
		r := RemoteRecord{ID: *v.Id, DNSRecord: base}
		r.Value = value
		result = append(result, r)
	}
	return result
}
