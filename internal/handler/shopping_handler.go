// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"bae-recipe-server/internal/middleware"
	"bae-recipe-server/internal/service"
	"bae-recipe-server/pkg/response"
)

// ShoppingHandler 购物清单请求处理器
type ShoppingHandler struct {
	shoppingService *service.ShoppingService
}

// NewShoppingHandler 创建 ShoppingHandler 实例
func NewShoppingHandler(shoppingService *service.ShoppingService) *ShoppingHandler {
	return &ShoppingHandler{
		shoppingService: shoppingService,
	}
}

// ListLists 获取当前用户的购物清单列表
// @Summary 购物清单列表
// @Tags 购物清单
// @Security Bearer
// @Produce json
// @Param page query int false "页码，默认 1"
// @Param page_size query int false "每页数量，默认 20"
// @Param keyword query string false "按名称搜索"
// @Success 200 {object} response.Response{data=service.ListResult}
// @Router /api/shopping-lists [get]
func (h *ShoppingHandler) ListLists(c *gin.Context) {
	userID := middleware.GetUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	keyword := c.Query("keyword")

	result, err := h.shoppingService.ListLists(c.Request.Context(), userID, page, pageSize, keyword)
	if err != nil {
		response.InternalError(c, "获取购物清单失败")
		return
	}

	response.Success(c, result)
}

// CreateList 创建购物清单
// @Summary 创建购物清单
// @Tags 购物清单
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.CreateListRequest true "清单内容"
// @Success 201 {object} response.Response{data=model.ShoppingList}
// @Router /api/shopping-lists [post]
func (h *ShoppingHandler) CreateList(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req service.CreateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	list, err := h.shoppingService.CreateList(c.Request.Context(), userID, &req)
	if err != nil {
		response.InternalError(c, "创建购物清单失败")
		return
	}

	response.Created(c, list)
}

// CreateListFromRecipe 从菜谱生成购物清单
// @Summary 从菜谱生成购物清单
// @Description 将菜谱的材料表转成一份新的购物清单
// @Tags 购物清单
// @Security Bearer
// @Produce json
// @Param id path int true "菜谱ID"
// @Success 201 {object} response.Response{data=model.ShoppingList}
// @Router /api/recipes/{id}/shopping-list [post]
func (h *ShoppingHandler) CreateListFromRecipe(c *gin.Context) {
	userID := middleware.GetUserID(c)

	recipeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的菜谱ID")
		return
	}

	list, err := h.shoppingService.CreateListFromRecipe(c.Request.Context(), userID, recipeID)
	if err != nil {
		if err == service.ErrRecipeNotFound {
			response.RecipeNotFound(c)
			return
		}
		response.InternalError(c, "生成购物清单失败")
		return
	}

	response.Created(c, list)
}

// GetList 获取清单详情
// @Summary 购物清单详情
// @Tags 购物清单
// @Security Bearer
// @Produce json
// @Param id path int true "清单ID"
// @Success 200 {object} response.Response{data=model.ShoppingList}
// @Router /api/shopping-lists/{id} [get]
func (h *ShoppingHandler) GetList(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的清单ID")
		return
	}

	list, err := h.shoppingService.GetList(c.Request.Context(), userID, listID)
	if err != nil {
		if err == service.ErrListNotFound {
			response.ListNotFound(c)
			return
		}
		response.InternalError(c, "获取购物清单失败")
		return
	}

	response.Success(c, list)
}

// RenameList 重命名清单
// @Summary 重命名购物清单
// @Tags 购物清单
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "清单ID"
// @Param body body RenameListRequest true "新名称"
// @Success 200 {object} response.Response{data=model.ShoppingList}
// @Router /api/shopping-lists/{id} [put]
func (h *ShoppingHandler) RenameList(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的清单ID")
		return
	}

	var req RenameListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	list, err := h.shoppingService.RenameList(c.Request.Context(), userID, listID, req.Name)
	if err != nil {
		if err == service.ErrListNotFound {
			response.ListNotFound(c)
			return
		}
		response.InternalError(c, "重命名失败")
		return
	}

	response.SuccessWithMessage(c, "重命名成功", list)
}

// DeleteList 删除清单
// @Summary 删除购物清单
// @Tags 购物清单
// @Security Bearer
// @Produce json
// @Param id path int true "清单ID"
// @Success 204
// @Router /api/shopping-lists/{id} [delete]
func (h *ShoppingHandler) DeleteList(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的清单ID")
		return
	}

	if err := h.shoppingService.DeleteList(c.Request.Context(), userID, listID); err != nil {
		if err == service.ErrListNotFound {
			response.ListNotFound(c)
			return
		}
		response.InternalError(c, "删除购物清单失败")
		return
	}

	response.NoContent(c)
}

// AddItem 向清单追加条目
// @Summary 添加购物条目
// @Tags 购物清单
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "清单ID"
// @Param body body service.CreateItemRequest true "条目内容"
// @Success 201 {object} response.Response{data=model.ShoppingItem}
// @Router /api/shopping-lists/{id}/items [post]
func (h *ShoppingHandler) AddItem(c *gin.Context) {
	userID := middleware.GetUserID(c)

	listID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的清单ID")
		return
	}

	var req service.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	item, err := h.shoppingService.AddItem(c.Request.Context(), userID, listID, &req)
	if err != nil {
		if err == service.ErrListNotFound {
			response.ListNotFound(c)
			return
		}
		response.InternalError(c, "添加条目失败")
		return
	}

	response.Created(c, item)
}

// UpdateItem 更新条目
// @Summary 更新购物条目
// @Description 更新条目的名称、数量或勾选状态
// @Tags 购物清单
// @Security Bearer
// @Accept json
// @Produce json
// @Param itemId path int true "条目ID"
// @Param body body service.UpdateItemRequest true "更新内容"
// @Success 200 {object} response.Response{data=model.ShoppingItem}
// @Router /api/shopping-items/{itemId} [put]
func (h *ShoppingHandler) UpdateItem(c *gin.Context) {
	userID := middleware.GetUserID(c)

	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的条目ID")
		return
	}

	var req service.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	item, err := h.shoppingService.UpdateItem(c.Request.Context(), userID, itemID, &req)
	if err != nil {
		if err == service.ErrItemNotFound {
			response.NotFound(c, "购物条目不存在")
			return
		}
		response.InternalError(c, "更新条目失败")
		return
	}

	response.Success(c, item)
}

// DeleteItem 删除条目
// @Summary 删除购物条目
// @Tags 购物清单
// @Security Bearer
// @Produce json
// @Param itemId path int true "条目ID"
// @Success 204
// @Router /api/shopping-items/{itemId} [delete]
func (h *ShoppingHandler) DeleteItem(c *gin.Context) {
	userID := middleware.GetUserID(c)

	itemID, err := strconv.ParseInt(c.Param("itemId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的条目ID")
		return
	}

	if err := h.shoppingService.DeleteItem(c.Request.Context(), userID, itemID); err != nil {
		if err == service.ErrItemNotFound {
			response.NotFound(c, "购物条目不存在")
			return
		}
		response.InternalError(c, "删除条目失败")
		return
	}

	response.NoContent(c)
}

// RenameListRequest 重命名清单请求
type RenameListRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}
