package proxmoxapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gyptazy/plb/internal/logging"
)

// AuthError marks a fatal auth/permission failure (spec.md 7b).
type AuthError struct{ Reason string }

func (e *AuthError) Error() string { return "authentication error: " + e.Reason }

// TransportError marks a transport failure against one host after its
// retries are exhausted (spec.md 7c). That host is dropped from the working
// set so later requests pick among the remaining hosts; the failed request
// itself is not retried on another host.
type TransportError struct{ Host, Reason string }

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %s", e.Host, e.Reason)
}

// HTTPClient implements Client against the Proxmox VE REST API, adapted
// from the teacher's ticket/CSRF + token auth HTTP client but generalized
// to a multi-host pool: each request picks a working host at random from
// the set that has not failed this cycle, per spec.md 7c's "successful
// endpoints are picked at random from the working set to spread load".
type HTTPClient struct {
	hosts       []string
	workingSet  []string
	httpClient  *http.Client
	username    string
	password    string
	tokenID     string
	tokenSecret string
	retries     int
	waitTime    time.Duration

	ticket    string
	csrfToken string

	log logging.Logger
}

// NewHTTPClient builds a client against hosts, authenticating with either
// (username, password) or (tokenID, tokenSecret) -- never both, matching
// spec.md 6's mutually-exclusive credential requirement.
func NewHTTPClient(hosts []string, username, password, tokenID, tokenSecret string, sslVerify bool, timeout, retries, waitTime int, log logging.Logger) *HTTPClient {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !sslVerify}, //nolint:gosec // operator opt-in via ssl_verification
	}
	return &HTTPClient{
		hosts:       append([]string(nil), hosts...),
		workingSet:  append([]string(nil), hosts...),
		httpClient:  &http.Client{Transport: tr, Timeout: time.Duration(timeout) * time.Second},
		username:    username,
		password:    password,
		tokenID:     tokenID,
		tokenSecret: tokenSecret,
		retries:     retries,
		waitTime:    time.Duration(waitTime) * time.Second,
		log:         log,
	}
}

func (c *HTTPClient) usesToken() bool { return c.tokenID != "" }

func (c *HTTPClient) pickHost() (string, error) {
	if len(c.workingSet) == 0 {
		return "", &TransportError{Host: "*", Reason: "no working hosts remain"}
	}
	return c.workingSet[rand.Intn(len(c.workingSet))], nil
}

func (c *HTTPClient) dropHost(host string) {
	out := c.workingSet[:0]
	for _, h := range c.workingSet {
		if h != host {
			out = append(out, h)
		}
	}
	c.workingSet = out
}

// Authenticate obtains a ticket via /access/ticket when using user/pass;
// token auth needs no session and is a no-op here.
func (c *HTTPClient) Authenticate(ctx context.Context) error {
	if c.usesToken() {
		return nil
	}
	host, err := c.pickHost()
	if err != nil {
		return err
	}
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("https://%s/api2/json/access/ticket", host), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req, host)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &AuthError{Reason: fmt.Sprintf("ticket request returned %d", resp.StatusCode)}
	}

	var out struct {
		Data struct {
			Ticket              string `json:"ticket"`
			CSRFPreventionToken string `json:"CSRFPreventionToken"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &AuthError{Reason: "malformed ticket response: " + err.Error()}
	}
	if out.Data.Ticket == "" {
		return &AuthError{Reason: "empty ticket in response"}
	}
	c.ticket = out.Data.Ticket
	c.csrfToken = out.Data.CSRFPreventionToken
	return nil
}

func (c *HTTPClient) do(req *http.Request, host string) (*http.Response, error) {
	if c.usesToken() {
		req.Header.Set("Authorization", fmt.Sprintf("PVEAPIToken=%s=%s", c.tokenID, c.tokenSecret))
	} else if c.ticket != "" {
		req.AddCookie(&http.Cookie{Name: "PVEAuthCookie", Value: c.ticket})
		if req.Method != http.MethodGet {
			req.Header.Set("CSRFPreventionToken", c.csrfToken)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.log.Warn().Str("host", host).Int("attempt", attempt).Err(err).Msg("transport error, retrying")
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(c.waitTime):
		}
	}
	c.dropHost(host)
	return nil, &TransportError{Host: host, Reason: lastErr.Error()}
}

func (c *HTTPClient) request(ctx context.Context, method, path string, body io.Reader) (*apiResponse, error) {
	host, err := c.pickHost()
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("https://%s/api2/json%s", host, path)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.do(req, host)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Reason: fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)}
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Host: host, Reason: "malformed JSON: " + err.Error()}
	}
	return &out, nil
}

type apiResponse struct {
	Data json.RawMessage `json:"data"`
}

func (c *HTTPClient) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	resp, err := c.request(ctx, http.MethodGet, "/nodes", nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Node    string  `json:"node"`
		Status  string  `json:"status"`
		MaxCPU  float64 `json:"maxcpu"`
		CPU     float64 `json:"cpu"`
		MaxMem  int64   `json:"maxmem"`
		Mem     int64   `json:"mem"`
		MaxDisk int64   `json:"maxdisk"`
		Disk    int64   `json:"disk"`
	}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, err
	}
	out := make([]NodeInfo, 0, len(raw))
	for _, n := range raw {
		version, verr := c.nodeVersion(ctx, n.Node)
		if verr != nil {
			c.log.Warn().Str("node", n.Node).Err(verr).Msg("version query failed, continuing with empty version")
		}
		out = append(out, NodeInfo{
			Name: n.Node, Status: n.Status, Version: version,
			MaxCPU: n.MaxCPU, CPU: n.CPU, MaxMem: n.MaxMem, Mem: n.Mem, MaxDisk: n.MaxDisk, Disk: n.Disk,
		})
	}
	return out, nil
}

func (c *HTTPClient) nodeVersion(ctx context.Context, node string) (string, error) {
	resp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/version", node), nil)
	if err != nil {
		return "", err
	}
	var v struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

func (c *HTTPClient) ListGuests(ctx context.Context, node string, guestType string) ([]GuestInfo, error) {
	endpoint := "qemu"
	if guestType == "ct" {
		endpoint = "lxc"
	}
	resp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/%s", node, endpoint), nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		VMID    int     `json:"vmid"`
		Name    string  `json:"name"`
		Status  string  `json:"status"`
		CPUs    float64 `json:"cpus"`
		CPU     float64 `json:"cpu"`
		MaxMem  int64   `json:"maxmem"`
		Mem     int64   `json:"mem"`
		MaxDisk int64   `json:"maxdisk"`
		Disk    int64   `json:"disk"`
	}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, err
	}
	out := make([]GuestInfo, 0, len(raw))
	for _, g := range raw {
		out = append(out, GuestInfo{
			VMID: g.VMID, Name: g.Name, Status: g.Status, Type: guestType,
			CPUs: g.CPUs, CPU: g.CPU, MaxMem: g.MaxMem, Mem: g.Mem, MaxDisk: g.MaxDisk, Disk: g.Disk,
		})
	}
	return out, nil
}

func (c *HTTPClient) GetGuestTags(ctx context.Context, node string, vmid int, guestType string) (string, error) {
	endpoint := "qemu"
	if guestType == "ct" {
		endpoint = "lxc"
	}
	resp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/%s/%d/config", node, endpoint, vmid), nil)
	if err != nil {
		return "", err
	}
	var cfg struct {
		Tags string `json:"tags"`
	}
	if err := json.Unmarshal(resp.Data, &cfg); err != nil {
		return "", err
	}
	return cfg.Tags, nil
}

func (c *HTTPClient) rrd(ctx context.Context, path string, resource string, cons Consolidation) ([]float64, error) {
	q := url.Values{"timeframe": {"hour"}, "cf": {string(cons)}}
	resp, err := c.request(ctx, http.MethodGet, path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var raw []map[string]json.Number
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(raw))
	for _, point := range raw {
		if n, ok := point[resource]; ok {
			f, _ := n.Float64()
			out = append(out, f)
		}
	}
	return out, nil
}

func (c *HTTPClient) GetNodePressure(ctx context.Context, node string, resource string, cons Consolidation) ([]float64, error) {
	return c.rrd(ctx, fmt.Sprintf("/nodes/%s/rrddata", node), resource, cons)
}

func (c *HTTPClient) GetGuestPressure(ctx context.Context, node string, vmid int, resource string, cons Consolidation) ([]float64, error) {
	return c.rrd(ctx, fmt.Sprintf("/nodes/%s/qemu/%d/rrddata", node, vmid), resource, cons)
}

func (c *HTTPClient) ListPools(ctx context.Context) ([]PoolInfo, error) {
	resp, err := c.request(ctx, http.MethodGet, "/pools", nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		PoolID string `json:"poolid"`
	}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, err
	}
	out := make([]PoolInfo, 0, len(raw))
	for _, p := range raw {
		memberResp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/pools/%s", p.PoolID), nil)
		if err != nil {
			return nil, err
		}
		var detail struct {
			Members []struct {
				VMID int    `json:"vmid"`
				Name string `json:"name"`
			} `json:"members"`
		}
		if err := json.Unmarshal(memberResp.Data, &detail); err != nil {
			return nil, err
		}
		var ids []int
		for _, m := range detail.Members {
			// skip members without a resolved name; we cannot correctly
			// account their resources without identifying the guest.
			if m.Name == "" {
				continue
			}
			ids = append(ids, m.VMID)
		}
		out = append(out, PoolInfo{Name: p.PoolID, Members: ids})
	}
	return out, nil
}

func (c *HTTPClient) ListHaRules(ctx context.Context) ([]HaRuleInfo, error) {
	resp, err := c.request(ctx, http.MethodGet, "/cluster/ha/rules", nil)
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Rule      string `json:"rule"`
		Affinity  string `json:"affinity"`
		Disable   int    `json:"disable"`
		Resources string `json:"resources"`
		Nodes     string `json:"nodes"`
	}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, err
	}
	out := make([]HaRuleInfo, 0, len(raw))
	for _, r := range raw {
		if r.Disable == 1 {
			continue
		}
		out = append(out, HaRuleInfo{
			ID: r.Rule, Affinity: r.Affinity,
			Resources: splitCSV(r.Resources),
			Nodes:     splitCSV(r.Nodes),
		})
	}
	return out, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *HTTPClient) MigrateVM(ctx context.Context, node string, vmid int, opts MigrateVMOptions) (string, error) {
	form := url.Values{"target": {opts.Target}}
	form.Set("online", boolToFlag(opts.Online))
	form.Set("with-local-disks", boolToFlag(opts.WithLocalDisks))
	if opts.WithConntrackState {
		form.Set("with-conntrack-state", "1")
	}
	return c.migrate(ctx, fmt.Sprintf("/nodes/%s/qemu/%d/migrate", node, vmid), form)
}

func (c *HTTPClient) MigrateCT(ctx context.Context, node string, vmid int, opts MigrateCTOptions) (string, error) {
	form := url.Values{"target": {opts.Target}}
	if opts.Restart {
		form.Set("restart", "1")
	}
	return c.migrate(ctx, fmt.Sprintf("/nodes/%s/lxc/%d/migrate", node, vmid), form)
}

func (c *HTTPClient) migrate(ctx context.Context, path string, form url.Values) (string, error) {
	resp, err := c.request(ctx, http.MethodPost, path, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	var upid string
	if err := json.Unmarshal(resp.Data, &upid); err != nil {
		return "", err
	}
	return upid, nil
}

func boolToFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (c *HTTPClient) GetTaskStatus(ctx context.Context, node string, upid string) (TaskStatus, error) {
	resp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/tasks/%s/status", node, url.PathEscape(upid)), nil)
	if err != nil {
		return TaskStatus{}, err
	}
	var raw struct {
		UPID       string `json:"upid"`
		Type       string `json:"type"`
		Status     string `json:"status"`
		ExitStatus string `json:"exitstatus"`
	}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return TaskStatus{}, err
	}
	return TaskStatus{UPID: raw.UPID, Type: raw.Type, Status: raw.Status, ExitStatus: raw.ExitStatus}, nil
}

func (c *HTTPClient) FindActiveTask(ctx context.Context, node string, typeFilter string, vmid int) (string, bool, error) {
	q := url.Values{
		"typefilter": {typeFilter},
		"vmid":       {strconv.Itoa(vmid)},
		"source":     {"active"},
		"limit":      {"1"},
	}
	resp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/nodes/%s/tasks?%s", node, q.Encode()), nil)
	if err != nil {
		return "", false, err
	}
	var raw []struct {
		UPID string `json:"upid"`
	}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return "", false, err
	}
	if len(raw) == 0 {
		return "", false, nil
	}
	return raw[0].UPID, true, nil
}

func (c *HTTPClient) CheckPermissions(ctx context.Context, required []string) error {
	resp, err := c.request(ctx, http.MethodGet, "/access/permissions", nil)
	if err != nil {
		return err
	}
	var perms map[string]map[string]int
	if err := json.Unmarshal(resp.Data, &perms); err != nil {
		return err
	}
	granted := map[string]bool{}
	for _, byPath := range perms {
		for perm := range byPath {
			granted[perm] = true
		}
	}
	var missing []string
	for _, p := range required {
		if !granted[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &AuthError{Reason: "missing required permissions: " + strings.Join(missing, ", ")}
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
