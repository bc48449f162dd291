package handler

import (
	"net/http"
	"strconv"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/middleware"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

// SuccessResponse は { message: string } 形式の応答です。
type SuccessResponse struct {
	Message string `json:"message"`
}

// /cartのHTTP。セッションミドルウェアが払い出すトークンと
// 任意のJWTから操作対象のカートを決めてから各usecaseへ渡す
type CartHandler struct {
	cartUC       *usecase.CartUsecase
	identityUC   *usecase.CartIdentityUsecase
	resolutionUC *usecase.CartResolutionUsecase
}

// DI
func NewCartHandler(
	cartUC *usecase.CartUsecase,
	identityUC *usecase.CartIdentityUsecase,
	resolutionUC *usecase.CartResolutionUsecase,
) *CartHandler {
	return &CartHandler{
		cartUC:       cartUC,
		identityUC:   identityUC,
		resolutionUC: resolutionUC,
	}
}

type AddItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int64 `json:"quantity"`
}

type BulkUpdateRequest struct {
	Items []BulkUpdateEntry `json:"items"`
}

type BulkUpdateEntry struct {
	ID       int64 `json:"id"`
	Quantity int64 `json:"quantity"`
}

type MergeResponse struct {
	Cart     usecase.CartResponse `json:"cart"`
	Messages []string             `json:"messages"`
}

type OptimizeResponse struct {
	Changed  bool     `json:"changed"`
	Messages []string `json:"messages"`
}

type CleanupResponse struct {
	Count int64 `json:"count"`
}

// /cart配下を登録。ゲストも通すのでJWTは任意
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/cart")
	g.Use(middleware.OptionalAuthJWT(cfg))

	g.GET("", h.getCart)
	g.POST("/items", h.addItem)
	g.PUT("/items/:id", h.updateItem)
	g.DELETE("/items/:id", h.deleteItem)
	g.DELETE("", h.clearCart)
	g.GET("/summary", h.summary)
	g.PUT("/bulk", h.bulkUpdate)
	g.POST("/validate", h.validate)
	g.POST("/optimize", h.optimize)
	g.GET("/health", h.health)

	// ログイン必須
	g.POST("/merge", h.merge, middleware.AuthJWT(cfg))
	g.POST("/resolve-conflicts", h.resolveConflicts, middleware.AuthJWT(cfg))
	g.POST("/cleanup", h.cleanupExpired, middleware.AuthJWT(cfg))

	// 管理者のみ
	g.POST("/admin/cleanup-abandoned", h.cleanupAbandoned,
		middleware.AuthJWT(cfg), middleware.AdminRoleGuard())
}

// このリクエストが操作するカートを決める（無ければ作成）
func (h *CartHandler) resolveCart(c echo.Context) (model.Cart, error) {
	return h.identityUC.ResolveCart(
		c.Request().Context(),
		optionalUserID(c),
		sessionIDFromContext(c),
	)
}

func (h *CartHandler) getCart(c echo.Context) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.cartUC.GetCartView(c.Request().Context(), cart.ID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addItem(c echo.Context) error {
	var req AddItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	item, err := h.cartUC.AddItem(c.Request().Context(), cart.ID, usecase.AddItemInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, item)
}

func (h *CartHandler) updateItem(c echo.Context) error {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.cartUC.UpdateItemQuantity(c.Request().Context(), cart.ID, itemID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}

	// 数量0以下で削除されたときはnullを返す（404の「存在しない」とは別物）
	if out.Removed {
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, out.Item)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.cartUC.RemoveItem(c.Request().Context(), cart.ID, itemID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *CartHandler) clearCart(c echo.Context) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := h.cartUC.ClearCart(c.Request().Context(), cart.ID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "cart cleared"})
}

func (h *CartHandler) summary(c echo.Context) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.cartUC.Summary(c.Request().Context(), cart.ID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) bulkUpdate(c echo.Context) error {
	var req BulkUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	updates := make([]usecase.BulkItemUpdate, 0, len(req.Items))
	for _, e := range req.Items {
		updates = append(updates, usecase.BulkItemUpdate{
			ID:       e.ID,
			Quantity: e.Quantity,
		})
	}

	out, err := h.cartUC.BulkUpdate(c.Request().Context(), cart.ID, updates)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ログイン時にセッションカートをユーザーカートへ取り込む
func (h *CartHandler) merge(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	ctx := c.Request().Context()

	sessionID := sessionIDFromContext(c)
	if sessionID == "" {
		return c.JSON(http.StatusOK, SuccessResponse{Message: "No session cart to merge"})
	}

	sessionCart, err := h.identityUC.FindSessionCart(ctx, sessionID)
	if err != nil {
		if he, isHTTP := usecase.AsHTTPError(err); isHTTP && he.Status == http.StatusNotFound {
			return c.JSON(http.StatusOK, SuccessResponse{Message: "No session cart to merge"})
		}
		return writeError(c, err)
	}

	userCart, err := h.identityUC.UserCart(ctx, userID)
	if err != nil {
		return writeError(c, err)
	}

	if sessionCart.ID == userCart.ID {
		return c.JSON(http.StatusOK, SuccessResponse{Message: "Carts are already the same"})
	}

	view, messages, err := h.resolutionUC.MergeCarts(ctx, sessionCart.ID, userCart.ID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, MergeResponse{Cart: view, Messages: messages})
}

// 現在のカートを指定カートへ手動で取り込む。対象は本人のカートのみ
func (h *CartHandler) resolveConflicts(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	targetID, err := strconv.ParseInt(c.QueryParam("target_cart_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid target_cart_id"})
	}

	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	if cart.ID == targetID {
		return c.JSON(http.StatusOK, SuccessResponse{Message: "Carts are already the same"})
	}

	view, messages, err := h.resolutionUC.MergeIntoOwnedCart(c.Request().Context(), userID, cart.ID, targetID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, MergeResponse{Cart: view, Messages: messages})
}

func (h *CartHandler) validate(c echo.Context) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.resolutionUC.ResolveAndValidate(c.Request().Context(), cart.ID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) optimize(c echo.Context) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	changed, messages, err := h.resolutionUC.Optimize(c.Request().Context(), cart.ID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, OptimizeResponse{Changed: changed, Messages: messages})
}

func (h *CartHandler) health(c echo.Context) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.resolutionUC.HealthReport(c.Request().Context(), cart.ID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// 期限切れACTIVEカートをEXPIREDへ落とす運用エンドポイント
func (h *CartHandler) cleanupExpired(c echo.Context) error {
	n, err := h.resolutionUC.CleanupExpired(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, CleanupResponse{Count: n})
}

// 放置ABANDONEDカートの削除（default 30日）
func (h *CartHandler) cleanupAbandoned(c echo.Context) error {
	daysOld := 30
	if v := c.QueryParam("days_old"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid days_old"})
		}
		daysOld = d
	}

	n, err := h.resolutionUC.CleanupAbandoned(c.Request().Context(), daysOld)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, CleanupResponse{Count: int64(n)})
}

// JWTが無いゲストはnil
func optionalUserID(c echo.Context) *int64 {
	id, ok := getUserIDFromContext(c)
	if !ok {
		return nil
	}
	return &id
}

// middleware.Session が c.Set したセッショントークンを取り出す
func sessionIDFromContext(c echo.Context) string {
	v := c.Get(middleware.CtxSessionIDKey)
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
