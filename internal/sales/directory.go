package sales

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

const (
	CollectionClients = "clients"
	CollectionSellers = "sellers"
)

type Entry struct {
	Name string `json:"name"`
}

// Directory is a named list of people a sale can refer to, such as the
// clients or the sellers. Entries are unique ignoring case.
type Directory struct {
	Store      docstore.Store
	Log        *zap.Logger
	Collection string
}

func NewDirectory(store docstore.Store, log *zap.Logger, collection string) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{Store: store, Log: log, Collection: collection}
}

func entryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (d *Directory) List(ctx context.Context) ([]Entry, error) {
	recs, err := d.Store.GetAll(ctx, d.Collection)
	if err != nil {
		d.Log.Error("list "+d.Collection+" failed", zap.Error(err))
		return nil, domain.NewRemoteOperationError("list "+d.Collection, err)
	}

	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		var e Entry
		if err := docstore.Decode(rec, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return entryKey(out[i].Name) < entryKey(out[j].Name) })
	return out, nil
}

// Add stores name unless an entry with the same name exists. Only admins
// maintain the directories.
func (d *Directory) Add(ctx context.Context, by kit.User, name string) (Entry, bool, error) {
	if !domain.CanManageCatalog(by.Role) {
		return Entry{}, false, &domain.ForbiddenError{Role: by.Role, Action: "edit " + d.Collection}
	}

	e := Entry{Name: strings.TrimSpace(name)}
	if e.Name == "" {
		return Entry{}, false, domain.NewValidationError("name", "required")
	}

	err := d.Store.Create(ctx, d.Collection, entryKey(e.Name), e)
	if errors.Is(err, docstore.ErrExists) {
		return e, false, nil
	}
	if err != nil {
		d.Log.Error("add to "+d.Collection+" failed", zap.String("name", e.Name), zap.Error(err))
		return Entry{}, false, domain.NewRemoteOperationError("add to "+d.Collection, err)
	}

	d.Log.Info("directory entry added", zap.String("collection", d.Collection), zap.String("name", e.Name))
	return e, true, nil
}
