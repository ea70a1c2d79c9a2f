package api

// dashboardHTML 管理后台页面：展示统计数据，管理预设和客户端密钥。
// 核心逻辑全部在 /admin/api 下的 JSON 接口里，这里只是薄渲染层。
const dashboardHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Evclaude 代理 - 管理后台</title>
  <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css" rel="stylesheet">
  <style>
    body { background-color: #f5f5f5; }
    .navbar { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); }
    .stat-value { font-size: 2rem; font-weight: bold; }
    .keywords { display: flex; flex-wrap: wrap; gap: 5px; }
    .keyword { background: #e9ecef; padding: 2px 8px; border-radius: 4px; font-size: 0.85rem; }
    .key-secret { font-family: monospace; font-size: 0.8rem; }
  </style>
</head>
<body>
  <nav class="navbar navbar-dark"><div class="container-fluid"><span class="navbar-brand">Evclaude 代理</span></div></nav>
  <div class="container mt-4">
    <div class="row g-4" id="stats"></div>

    <h4 class="mt-5">客户端密钥</h4>
    <div class="mb-2">
      <input type="text" id="newKeyName" placeholder="密钥名称" class="form-control d-inline-block w-auto">
      <button class="btn btn-primary btn-sm" onclick="createKey()">创建密钥</button>
    </div>
    <table class="table table-sm bg-white" id="keys"></table>

    <h4 class="mt-5">预设问答管理</h4>
    <div id="presets" class="mt-3"></div>

    <div class="card mt-4 mb-5">
      <div class="card-header">添加新预设</div>
      <div class="card-body">
        <div class="mb-3">
          <label class="form-label">关键词 (逗号分隔)</label>
          <input type="text" class="form-control" id="newKeywords">
        </div>
        <div class="mb-3">
          <label class="form-label">最少匹配数量</label>
          <input type="number" class="form-control" id="newMatchCount" value="2" min="1">
        </div>
        <div class="mb-3">
          <label class="form-label">预设回复</label>
          <textarea class="form-control" id="newResponse" rows="5"></textarea>
        </div>
        <button class="btn btn-primary" onclick="addPreset()">添加预设</button>
      </div>
    </div>
  </div>
  <script>
    async function loadData() {
      const [statsRes, presetsRes, keysRes] = await Promise.all([
        fetch('/admin/api/stats'),
        fetch('/admin/api/presets'),
        fetch('/admin/api/keys')
      ]);
      const stats = await statsRes.json();
      const presets = await presetsRes.json();
      const keys = await keysRes.json();

      document.getElementById('stats').innerHTML = ` + "`" + `
        <div class="col-md-3"><div class="card p-3"><h6>总请求</h6><div class="stat-value">${stats.totalRequests}</div></div></div>
        <div class="col-md-3"><div class="card p-3"><h6>今日请求</h6><div class="stat-value">${stats.todayRequests}</div></div></div>
        <div class="col-md-3"><div class="card p-3"><h6>成功</h6><div class="stat-value">${stats.successfulRequests}</div></div></div>
        <div class="col-md-3"><div class="card p-3"><h6>失败</h6><div class="stat-value">${stats.failedRequests}</div></div></div>
      ` + "`" + `;

      document.getElementById('keys').innerHTML =
        '<tr><th>名称</th><th>密钥</th><th>状态</th><th></th></tr>' +
        (keys || []).map(k => ` + "`" + `
          <tr>
            <td>${k.name}</td>
            <td class="key-secret">${k.key}</td>
            <td>${k.enabled ? '启用' : '禁用'}</td>
            <td>
              <button class="btn btn-sm btn-secondary" onclick="toggleKey('${k.id}', ${!k.enabled})">${k.enabled ? '禁用' : '启用'}</button>
              <button class="btn btn-sm btn-danger" onclick="deleteKey('${k.id}')">删除</button>
            </td>
          </tr>
        ` + "`" + `).join('');

      document.getElementById('presets').innerHTML = (presets || []).map((p, i) => ` + "`" + `
        <div class="card mb-3">
          <div class="card-body">
            <div class="d-flex justify-content-between">
              <div class="keywords">${p.keywords.map(k => '<span class="keyword">' + k + '</span>').join('')}</div>
              <button class="btn btn-sm btn-danger" onclick="deletePreset(${i})">删除</button>
            </div>
            <small class="text-muted">至少匹配 ${p.matchCount || 1} 个关键词</small>
            <pre class="mt-2 bg-light p-2" style="max-height:100px;overflow:auto;font-size:0.8rem;">${p.response.substring(0, 200)}</pre>
          </div>
        </div>
      ` + "`" + `).join('');
    }

    async function createKey() {
      const name = document.getElementById('newKeyName').value.trim();
      if (!name) { alert('请填写密钥名称'); return; }
      await fetch('/admin/api/keys', {
        method: 'POST',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify({ name })
      });
      document.getElementById('newKeyName').value = '';
      loadData();
    }

    async function toggleKey(id, enabled) {
      await fetch('/admin/api/keys/' + id, {
        method: 'PATCH',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify({ enabled })
      });
      loadData();
    }

    async function deleteKey(id) {
      if (confirm('确定删除这个密钥？')) {
        await fetch('/admin/api/keys/' + id, { method: 'DELETE' });
        loadData();
      }
    }

    async function addPreset() {
      const keywords = document.getElementById('newKeywords').value.split(',').map(k => k.trim()).filter(k => k);
      const matchCount = parseInt(document.getElementById('newMatchCount').value) || 1;
      const response = document.getElementById('newResponse').value;

      if (!keywords.length || !response) {
        alert('请填写关键词和回复内容');
        return;
      }

      await fetch('/admin/api/presets', {
        method: 'POST',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify({ keywords, matchCount, response })
      });

      document.getElementById('newKeywords').value = '';
      document.getElementById('newResponse').value = '';
      loadData();
    }

    async function deletePreset(index) {
      if (confirm('确定删除这条预设？')) {
        await fetch('/admin/api/presets/' + index, { method: 'DELETE' });
        loadData();
      }
    }

    loadData();
  </script>
</body>
</html>`
