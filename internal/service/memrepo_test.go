package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/repository"
)

// memRepo хранит данные в памяти с той же семантикой fn, что и у PostgreSQL:
// fn работает с копией, копия сохраняется только при успехе.
type memRepo struct {
	mu  sync.Mutex
	seq int64

	leads        map[int64]model.Lead
	profiles     map[int64]model.LeadProfile
	clients      map[int64]model.Client
	projects     map[int64]model.Project
	receipts     map[int64]model.PaymentReceipt
	installments map[int64]model.Installment
	wallets      map[int64]model.Wallet
	withdrawals  map[int64]model.WithdrawalRequest
	reps         map[int64]model.SalesRep
	targets      map[int64]model.Target

	lastConversionErr error
	lastConversionN   int
}

func newMemRepo() *memRepo {
	return &memRepo{
		leads:        make(map[int64]model.Lead),
		profiles:     make(map[int64]model.LeadProfile),
		clients:      make(map[int64]model.Client),
		projects:     make(map[int64]model.Project),
		receipts:     make(map[int64]model.PaymentReceipt),
		installments: make(map[int64]model.Installment),
		wallets:      make(map[int64]model.Wallet),
		withdrawals:  make(map[int64]model.WithdrawalRequest),
		reps:         make(map[int64]model.SalesRep),
		targets:      make(map[int64]model.Target),
	}
}

func (m *memRepo) nextID() int64 {
	m.seq++
	return m.seq
}

func cloneLead(l model.Lead) model.Lead {
	l.FollowUps = slices.Clone(l.FollowUps)
	l.Notes = slices.Clone(l.Notes)
	l.SharedFromSales = slices.Clone(l.SharedFromSales)
	l.SharedWithSales = slices.Clone(l.SharedWithSales)
	l.Transfers = slices.Clone(l.Transfers)
	return l
}

func (m *memRepo) Close() error { return nil }

func (m *memRepo) CreateLead(_ context.Context, lead model.Lead) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead.ID = m.nextID()
	lead.Version = 1
	m.leads[lead.ID] = cloneLead(lead)
	return &lead, nil
}

func (m *memRepo) GetLead(_ context.Context, id int64) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead", id)
	}
	l = cloneLead(l)
	return &l, nil
}

func (m *memRepo) UpdateLead(_ context.Context, id int64, fn func(*model.Lead) error) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead", id)
	}
	l = cloneLead(l)
	if err := fn(&l); err != nil {
		return nil, err
	}
	l.Version++
	m.leads[id] = cloneLead(l)
	return &l, nil
}

func (m *memRepo) TransferLead(_ context.Context, id int64, fn func(*model.Lead) error) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[id]
	if !ok {
		return nil, apperr.NotFound("lead", id)
	}
	l = cloneLead(l)
	if err := fn(&l); err != nil {
		return nil, err
	}
	l.Version++
	m.leads[id] = cloneLead(l)

	for cid, c := range m.clients {
		if c.LeadID == nil || *c.LeadID != id {
			continue
		}
		c.OwnerID = l.OwnerID
		m.clients[cid] = c
		for pid, p := range m.projects {
			if p.ClientID == cid {
				p.OwnerID = l.OwnerID
				p.Version++
				m.projects[pid] = p
			}
		}
	}
	return &l, nil
}

func visibleTo(l model.Lead, principalID int64) bool {
	if l.OwnerID == principalID || (l.ChannelPartnerID != nil && *l.ChannelPartnerID == principalID) {
		return true
	}
	for _, sh := range append(slices.Clone(l.SharedFromSales), l.SharedWithSales...) {
		if sh.CounterpartyID == principalID {
			return true
		}
	}
	return false
}

func (m *memRepo) ListLeads(_ context.Context, principalID int64) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Lead
	for _, l := range m.leads {
		if visibleTo(l, principalID) {
			res = append(res, cloneLead(l))
		}
	}
	slices.SortFunc(res, func(a, b model.Lead) int { return int(a.ID - b.ID) })
	return res, nil
}

func (m *memRepo) CountLeads(_ context.Context, ownerID int64) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total, converted int
	for _, l := range m.leads {
		if l.OwnerID != ownerID {
			continue
		}
		total++
		if l.Status == model.StatusConverted {
			converted++
		}
	}
	return total, converted, nil
}

func (m *memRepo) GetProfile(_ context.Context, leadID int64) (*model.LeadProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[leadID]
	if !ok {
		return nil, apperr.NotFound("lead profile", leadID)
	}
	return &p, nil
}

func (m *memRepo) SaveProfile(_ context.Context, p model.LeadProfile) (*model.LeadProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.profiles[p.LeadID]; ok {
		p.CreatedAt = old.CreatedAt
	}
	m.profiles[p.LeadID] = p
	return &p, nil
}

// saveConversion сохраняет клиента (если он новый), проект и аванс.
func (m *memRepo) saveConversion(conv *repository.Conversion) {
	if conv.Client.ID == 0 {
		conv.Client.ID = m.nextID()
		m.clients[conv.Client.ID] = conv.Client
	}
	conv.Project.ID = m.nextID()
	conv.Project.ClientID = conv.Client.ID
	conv.Project.Version = 1
	m.projects[conv.Project.ID] = conv.Project
	if conv.Advance != nil {
		adv := *conv.Advance
		adv.ID = m.nextID()
		adv.ProjectID = conv.Project.ID
		m.receipts[adv.ID] = adv
		conv.Advance = &adv
	}
}

func (m *memRepo) ConvertLead(_ context.Context, leadID int64, fn func(*model.Lead, *model.LeadProfile) (repository.Conversion, error)) (*repository.Conversion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leads[leadID]
	if !ok {
		return nil, apperr.NotFound("lead", leadID)
	}
	l = cloneLead(l)

	var profile *model.LeadProfile
	if p, ok := m.profiles[leadID]; ok {
		profile = &p
	}

	conv, err := fn(&l, profile)
	if err != nil {
		return nil, err
	}
	l.Version++
	m.leads[leadID] = cloneLead(l)
	conv.Lead = &l
	m.saveConversion(&conv)
	return &conv, nil
}

func (m *memRepo) GetClient(_ context.Context, id int64) (*model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok {
		return nil, apperr.NotFound("client", id)
	}
	return &c, nil
}

func (m *memRepo) AddClientProject(_ context.Context, clientID int64, fn func(model.Client) (repository.Conversion, error)) (*repository.Conversion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[clientID]
	if !ok {
		return nil, apperr.NotFound("client", clientID)
	}
	conv, err := fn(c)
	if err != nil {
		return nil, err
	}
	conv.Client = c
	m.saveConversion(&conv)
	return &conv, nil
}

func (m *memRepo) ledgerOf(projectID int64) (repository.ProjectLedger, bool) {
	p, ok := m.projects[projectID]
	if !ok {
		return repository.ProjectLedger{}, false
	}
	l := repository.ProjectLedger{Project: p}
	for _, r := range m.receipts {
		if r.ProjectID == projectID {
			l.Receipts = append(l.Receipts, r)
		}
	}
	for _, in := range m.installments {
		if in.ProjectID == projectID {
			l.Installments = append(l.Installments, in)
		}
	}
	slices.SortFunc(l.Receipts, func(a, b model.PaymentReceipt) int { return int(a.ID - b.ID) })
	slices.SortFunc(l.Installments, func(a, b model.Installment) int { return int(a.ID - b.ID) })
	return l, true
}

func (m *memRepo) GetProjectLedger(_ context.Context, projectID int64) (*repository.ProjectLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.ledgerOf(projectID)
	if !ok {
		return nil, apperr.NotFound("project", projectID)
	}
	return &l, nil
}

func (m *memRepo) UpdateProject(_ context.Context, id int64, fn func(*model.Project) error) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id)
	}
	if err := fn(&p); err != nil {
		return nil, err
	}
	p.Version++
	m.projects[id] = p
	return &p, nil
}

func (m *memRepo) CreateReceipt(_ context.Context, projectID int64, fn func(repository.ProjectLedger) (model.PaymentReceipt, error)) (*model.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.ledgerOf(projectID)
	if !ok {
		return nil, apperr.NotFound("project", projectID)
	}
	r, err := fn(l)
	if err != nil {
		return nil, err
	}
	r.ID = m.nextID()
	r.ProjectID = projectID
	m.receipts[r.ID] = r
	return &r, nil
}

func (m *memRepo) walletOf(ownerID int64) model.Wallet {
	for _, w := range m.wallets {
		if w.OwnerID == ownerID {
			return w
		}
	}
	w := model.Wallet{ID: m.nextID(), OwnerID: ownerID, Version: 1}
	m.wallets[w.ID] = w
	return w
}

func (m *memRepo) ReviewReceipt(_ context.Context, receiptID int64, fn func(*model.PaymentReceipt, model.Project, *model.Wallet) error) (*model.PaymentReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.receipts[receiptID]
	if !ok {
		return nil, apperr.NotFound("receipt", receiptID)
	}
	p := m.projects[r.ProjectID]
	w := m.walletOf(p.OwnerID)
	if err := fn(&r, p, &w); err != nil {
		return nil, err
	}
	m.receipts[receiptID] = r
	m.wallets[w.ID] = w
	return &r, nil
}

func (m *memRepo) CreateInstallment(_ context.Context, in model.Installment) (*model.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in.ID = m.nextID()
	m.installments[in.ID] = in
	return &in, nil
}

func (m *memRepo) UpdateInstallment(_ context.Context, id int64, fn func(*model.Installment, model.Project) error) (*model.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.installments[id]
	if !ok {
		return nil, apperr.NotFound("installment", id)
	}
	if err := fn(&in, m.projects[in.ProjectID]); err != nil {
		return nil, err
	}
	m.installments[id] = in
	return &in, nil
}

func (m *memRepo) GetWallet(_ context.Context, ownerID int64) (*model.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.walletOf(ownerID)
	return &w, nil
}

func (m *memRepo) CreateWithdrawal(_ context.Context, ownerID int64, fn func(model.Wallet) (model.WithdrawalRequest, error)) (*model.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, err := fn(m.walletOf(ownerID))
	if err != nil {
		return nil, err
	}
	req.ID = m.nextID()
	m.withdrawals[req.ID] = req
	return &req, nil
}

func (m *memRepo) ReviewWithdrawal(_ context.Context, requestID int64, fn func(*model.Wallet, *model.WithdrawalRequest) error) (*model.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.withdrawals[requestID]
	if !ok {
		return nil, apperr.NotFound("withdrawal", requestID)
	}
	w := m.wallets[req.WalletID]
	if err := fn(&w, &req); err != nil {
		return nil, err
	}
	m.withdrawals[requestID] = req
	m.wallets[w.ID] = w
	return &req, nil
}

func (m *memRepo) ListWithdrawals(_ context.Context, ownerID int64) ([]model.WithdrawalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.walletOf(ownerID)
	var res []model.WithdrawalRequest
	for _, req := range m.withdrawals {
		if req.WalletID == w.ID {
			res = append(res, req)
		}
	}
	return res, nil
}

func (m *memRepo) CreateSalesRep(_ context.Context, rep model.SalesRep) (*model.SalesRep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rep.ID = m.nextID()
	m.reps[rep.ID] = rep
	return &rep, nil
}

func (m *memRepo) GetSalesRep(_ context.Context, id int64) (*model.SalesRep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rep, ok := m.reps[id]
	if !ok {
		return nil, apperr.NotFound("sales rep", id)
	}
	return &rep, nil
}

func (m *memRepo) ListTeamMembers(_ context.Context, teamLeadID int64) ([]model.SalesRep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.SalesRep
	for _, rep := range m.reps {
		if rep.TeamLeadID != nil && *rep.TeamLeadID == teamLeadID && rep.ID != teamLeadID {
			res = append(res, rep)
		}
	}
	slices.SortFunc(res, func(a, b model.SalesRep) int { return int(a.ID - b.ID) })
	return res, nil
}

func (m *memRepo) CreateTarget(_ context.Context, t model.Target) (*model.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, ex := range m.targets {
		if ex.OwnerID == t.OwnerID && ex.TargetNumber > n {
			n = ex.TargetNumber
		}
	}
	t.ID = m.nextID()
	t.TargetNumber = n + 1
	m.targets[t.ID] = t
	return &t, nil
}

func (m *memRepo) ListTargets(_ context.Context, ownerID int64) ([]model.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Target
	for _, t := range m.targets {
		if t.OwnerID == ownerID {
			res = append(res, t)
		}
	}
	slices.SortFunc(res, func(a, b model.Target) int { return a.TargetNumber - b.TargetNumber })
	return res, nil
}

func (m *memRepo) MonthlySales(_ context.Context, ownerID int64, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum int64
	for _, p := range m.projects {
		if p.OwnerID != ownerID || p.Status == model.ProjectCancelled {
			continue
		}
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			sum += p.TotalCost
		}
	}
	return sum, nil
}

func (m *memRepo) LastConversionAt(_ context.Context, ownerID int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastConversionN++
	if m.lastConversionErr != nil {
		return nil, m.lastConversionErr
	}

	var last *time.Time
	for _, p := range m.projects {
		if p.OwnerID != ownerID {
			continue
		}
		if last == nil || p.CreatedAt.After(*last) {
			at := p.CreatedAt
			last = &at
		}
	}
	return last, nil
}

func (m *memRepo) projectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.projects)
}
