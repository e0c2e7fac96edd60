// Package service implements the shop use cases on top of the store.
package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/safar/go-shop-bot/internal/catalog"
	"github.com/safar/go-shop-bot/internal/database"
	"github.com/safar/go-shop-bot/internal/models"
	"github.com/safar/go-shop-bot/internal/notify"
	"github.com/safar/go-shop-bot/internal/store"
	"go.uber.org/zap"
)

const topCategories = 5

// Repository is the persistence contract the service depends on.
type Repository interface {
	RegisterOrUpdateUser(ctx context.Context, externalID int64, username string, isAdmin bool) (*models.User, error)
	GetUserByExternalID(ctx context.Context, externalID int64) (*models.User, error)
	EnsureAdministrators(ctx context.Context, externalIDs []int64) error
	SetAdminFlag(ctx context.Context, externalID int64, isAdmin bool) (bool, error)
	ListAdministrators(ctx context.Context) ([]int64, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	ListUsers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)

	SeedCategories(ctx context.Context, names []string) error
	ListCategories(ctx context.Context) ([]string, error)

	CreateProduct(ctx context.Context, p models.NewProduct) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, category string) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) (string, error)
	DeleteProduct(ctx context.Context, id int64) (string, error)
	ImageInUse(ctx context.Context, ref string) (bool, error)
	ExportProducts(ctx context.Context) ([]models.ProductRecord, error)
	ImportProducts(ctx context.Context, records []models.ProductRecord) (models.ImportResult, error)

	AddItem(ctx context.Context, externalID, productID int64) error
	SetItemQuantity(ctx context.Context, externalID, productID int64, quantity int) error
	ListItems(ctx context.Context, externalID int64) ([]models.CartItem, error)
	Clear(ctx context.Context, externalID int64) (bool, error)

	Checkout(ctx context.Context, externalID int64) (*models.Order, error)
	GetOrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error)
	ListOrdersCursor(ctx context.Context, externalID int64, cursor string, limit int) (*store.CursorPage, error)

	GetStats(ctx context.Context, topCategories int) (*models.Stats, error)
}

type ImageStore interface {
	Save(r io.Reader, ext string) (string, error)
	Release(ref string) error
	Resolve(ref string) string
	Owns(ref string) bool
}

type Broadcaster interface {
	Broadcast(ctx context.Context, recipients []int64, text string) notify.Report
}

// Options carries the catalog settings the service needs.
type Options struct {
	Categories   []string
	BackupDir    string
	BackupFile   string
	SnapshotKeep int
}

type Service struct {
	repo     Repository
	images   ImageStore
	notifier Broadcaster
	admins   AllowList
	opts     Options
	logger   *zap.Logger

	pending sync.WaitGroup
}

func NewService(repo Repository, images ImageStore, notifier Broadcaster, admins AllowList, opts Options, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		images:   images,
		notifier: notifier,
		admins:   admins,
		opts:     opts,
		logger:   logger,
	}
}

// Wait blocks until queued notifications have been handed to the sender.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Start registers the user on login and overwrites the stored admin flag from
// the allow-list.
func (s *Service) Start(ctx context.Context, externalID int64, username string) (*models.User, error) {
	isAdmin := ResolveAdmin(externalID, s.admins, nil)
	return s.repo.RegisterOrUpdateUser(ctx, externalID, username, isAdmin)
}

// IsAdministrator prefers the stored flag. An unknown allow-listed identity is
// registered as administrator on the way.
func (s *Service) IsAdministrator(ctx context.Context, externalID int64) (bool, error) {
	var stored *bool

	user, err := s.repo.GetUserByExternalID(ctx, externalID)
	switch {
	case err == nil:
		stored = &user.IsAdmin
	case errors.Is(err, database.ErrUserNotFound):
	default:
		return false, err
	}

	isAdmin := ResolveAdmin(externalID, s.admins, stored)
	if stored == nil && isAdmin {
		if _, err := s.repo.RegisterOrUpdateUser(ctx, externalID, "", true); err != nil {
			return false, err
		}
	}
	return isAdmin, nil
}

// SyncAdmin recomputes the flag of a registered user from the allow-list.
func (s *Service) SyncAdmin(ctx context.Context, externalID int64) (bool, error) {
	found, err := s.repo.SetAdminFlag(ctx, externalID, s.admins.Contains(externalID))
	if err != nil {
		return false, err
	}
	if !found {
		return false, database.ErrUserNotFound
	}
	return s.admins.Contains(externalID), nil
}

func (s *Service) ReconcileAdministrators(ctx context.Context) error {
	return s.repo.EnsureAdministrators(ctx, s.admins.IDs())
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) Products(ctx context.Context, category string) ([]models.Product, error) {
	return s.repo.ListProducts(ctx, category)
}

func (s *Service) Product(ctx context.Context, id int64) (*models.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// SaveImage stores an uploaded picture and returns its reference.
func (s *Service) SaveImage(r io.Reader, filename string) (string, error) {
	return s.images.Save(r, strings.ToLower(filepath.Ext(filename)))
}

// CreateProduct fills in the placeholder image when none is given. A supplied
// image is released if the product cannot be created and no other product
// uses it.
func (s *Service) CreateProduct(ctx context.Context, p models.NewProduct) (*models.Product, error) {
	if err := s.checkImage(p.ImagePath); err != nil {
		return nil, err
	}
	supplied := p.ImagePath
	p.ImagePath = s.images.Resolve(p.ImagePath)

	product, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		s.releaseImage(ctx, supplied)
		return nil, err
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("category", product.Category))
	return product, nil
}

// UpdateProduct applies a partial edit. On success a replaced image is
// released; on failure the newly supplied one is. Images still referenced by
// a product are kept either way.
func (s *Service) UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) error {
	if upd.IsEmpty() {
		return &database.ValidationError{Field: "update", Reason: "no fields given"}
	}
	image, hasImage := upd.ImagePath.Get()
	if hasImage {
		if err := s.checkImage(image); err != nil {
			return err
		}
	}

	previous, err := s.repo.UpdateProduct(ctx, id, upd)
	if err != nil {
		if hasImage {
			s.releaseImage(ctx, image)
		}
		return err
	}

	s.releaseImage(ctx, previous)
	s.logger.Info("product updated", zap.Int64("product_id", id))
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	image, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}

	s.releaseImage(ctx, image)
	s.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

func (s *Service) checkImage(ref string) error {
	if ref != "" && !s.images.Owns(ref) {
		return &database.ValidationError{Field: "image_path", Reason: "must reference an uploaded image"}
	}
	return nil
}

// releaseImage is best effort; a failure is logged and never returned.
// Images that any product still references are left alone.
func (s *Service) releaseImage(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	inUse, err := s.repo.ImageInUse(ctx, ref)
	if err != nil {
		s.logger.Warn("failed to check image usage", zap.String("image", ref), zap.Error(err))
		return
	}
	if inUse {
		return
	}
	if err := s.images.Release(ref); err != nil {
		s.logger.Warn("failed to release image", zap.String("image", ref), zap.Error(err))
	}
}

func (s *Service) AddToCart(ctx context.Context, externalID, productID int64) error {
	return s.repo.AddItem(ctx, externalID, productID)
}

func (s *Service) SetCartQuantity(ctx context.Context, externalID, productID int64, quantity int) error {
	return s.repo.SetItemQuantity(ctx, externalID, productID, quantity)
}

func (s *Service) Cart(ctx context.Context, externalID int64) ([]models.CartItem, error) {
	return s.repo.ListItems(ctx, externalID)
}

func (s *Service) ClearCart(ctx context.Context, externalID int64) (bool, error) {
	return s.repo.Clear(ctx, externalID)
}

// Checkout places the order and alerts the administrators in the background.
// Notification problems are logged and never affect the result.
func (s *Service) Checkout(ctx context.Context, externalID int64) (*models.Order, error) {
	order, err := s.repo.Checkout(ctx, externalID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", externalID))

	notifyCtx := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.notifyNewOrder(notifyCtx, order.ID)
	}()

	return order, nil
}

func (s *Service) notifyNewOrder(ctx context.Context, orderID int64) {
	details, err := s.repo.GetOrderDetails(ctx, orderID)
	if err != nil {
		s.logger.Error("failed to load order for notification", zap.Int64("order_id", orderID), zap.Error(err))
		return
	}

	if err := s.notifyAdmins(ctx, notify.FormatOrder(details)); err != nil {
		s.logger.Error("failed to notify administrators", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) notifyAdmins(ctx context.Context, text string) error {
	admins, err := s.repo.ListAdministrators(ctx)
	if err != nil {
		return err
	}
	s.notifier.Broadcast(ctx, admins, text)
	return nil
}

func (s *Service) OrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error) {
	return s.repo.GetOrderDetails(ctx, orderID)
}

func (s *Service) Orders(ctx context.Context, externalID int64, cursor string, limit int) (*store.CursorPage, error) {
	return s.repo.ListOrdersCursor(ctx, externalID, cursor, limit)
}

// Broadcast sends text to every registered user.
func (s *Service) Broadcast(ctx context.Context, text string) (notify.Report, error) {
	if strings.TrimSpace(text) == "" {
		return notify.Report{}, &database.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return notify.Report{}, err
	}
	return s.notifier.Broadcast(ctx, ids, text), nil
}

func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	return s.repo.GetStats(ctx, topCategories)
}

func (s *Service) Users(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	if page < 1 || pageSize < 1 {
		return nil, &database.ValidationError{Field: "page", Reason: "page and page size must be positive"}
	}
	return s.repo.ListUsers(ctx, page, pageSize)
}

// BackupPathFor places a backup file name inside the backup directory. An
// empty name is the default backup file.
func (s *Service) BackupPathFor(name string) string {
	if name == "" {
		name = s.opts.BackupFile
	}
	return filepath.Join(s.opts.BackupDir, filepath.Base(name))
}

// ExportCatalog writes the catalog to path, or to the default backup file when
// path is empty.
func (s *Service) ExportCatalog(ctx context.Context, path string) (string, int, error) {
	if path == "" {
		path = s.BackupPathFor("")
	}

	n, err := catalog.Export(ctx, s.repo, path)
	if err != nil {
		return "", 0, err
	}

	s.logger.Info("catalog exported", zap.String("file", path), zap.Int("products", n))
	return path, n, nil
}

func (s *Service) ImportCatalog(ctx context.Context, path string) (models.ImportResult, error) {
	if path == "" {
		path = s.BackupPathFor("")
	}

	result, err := catalog.Import(ctx, s.repo, path)
	if err != nil {
		return models.ImportResult{}, err
	}

	s.logger.Info("catalog imported",
		zap.String("file", path),
		zap.Int("imported", result.Imported),
		zap.Int("existing", result.Existing),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// Bootstrap prepares a fresh or restarted shop: categories are seeded, the
// allow-list is written to storage, the newest backup is merged in and a
// timestamped snapshot is taken. Administrators are told the bot is up.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.repo.SeedCategories(ctx, s.opts.Categories); err != nil {
		return err
	}

	if err := s.ReconcileAdministrators(ctx); err != nil {
		return err
	}

	latest, ok, err := catalog.LatestBackup(s.opts.BackupDir)
	if err != nil {
		return err
	}
	if ok {
		if _, err := s.ImportCatalog(ctx, latest); err != nil {
			return err
		}
	} else {
		s.logger.Info("no catalog backup found", zap.String("dir", s.opts.BackupDir))
	}

	if s.opts.SnapshotKeep > 0 {
		path, err := catalog.Snapshot(ctx, s.repo, s.opts.BackupDir, s.opts.SnapshotKeep, time.Now())
		if err != nil {
			s.logger.Warn("failed to take catalog snapshot", zap.Error(err))
		} else {
			s.logger.Info("catalog snapshot taken", zap.String("file", path))
		}
	}

	if err := s.notifyAdmins(ctx, notify.StartupMessage); err != nil {
		s.logger.Warn("failed to announce startup", zap.Error(err))
	}
	return nil
}
