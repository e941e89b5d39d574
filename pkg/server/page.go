package server

import (
	"encoding/json"
	"html/template"
	"io"

	"github.com/floatchat/floatchat/pkg/config"
)

// renderWidgetPage writes the embeddable widget page with the instance
// configuration injected. The page implements the same widget behavior the
// terminal host does: bubble toggle, 8-handle resize with clamping,
// attachment validation and preview, data-URI encoding, and the webhook
// payload contract. Submissions go through /widget/send and injected
// replies arrive over /widget/events.
func renderWidgetPage(w io.Writer, cfg config.WidgetConfig) error {
	raw, err := json.Marshal(map[string]interface{}{
		"themeColor":        cfg.ThemeColor,
		"title":             cfg.Title,
		"placeholder":       cfg.Placeholder,
		"welcomeMessage":    cfg.WelcomeMessage,
		"position":          cfg.Position,
		"width":             cfg.Width,
		"height":            cfg.Height,
		"resizable":         cfg.Resizable,
		"minWidth":          cfg.MinWidth,
		"maxWidth":          cfg.MaxWidth,
		"minHeight":         cfg.MinHeight,
		"maxHeight":         cfg.MaxHeight,
		"animationDuration": cfg.AnimationDurationMS,
		"typingSpeed":       cfg.TypingSpeedMS,
		"maxMessageLength":  cfg.MaxMessageLength,
		"enableFileUpload":  cfg.EnableFileUpload,
		"maxFileSize":       cfg.MaxFileSize,
		"allowedFileTypes":  cfg.AllowedFileTypes,
	})
	if err != nil {
		return err
	}
	return widgetPageTmpl.Execute(w, map[string]interface{}{
		"Title":  cfg.Title,
		"Config": template.JS(raw),
	})
}

func renderLoginPage(w io.Writer, errMsg string) error {
	return loginPageTmpl.Execute(w, map[string]interface{}{"Error": errMsg})
}

var loginPageTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>FloatChat - Login</title>
<style>
body{font-family:system-ui,-apple-system,sans-serif;background:#0f1117;color:#e8e6f0;
  height:100vh;margin:0;display:flex;align-items:center;justify-content:center}
.card{width:100%;max-width:360px;padding:36px 28px;background:#161822;
  border:1px solid #252836;border-radius:14px}
.card h1{font-size:18px;text-align:center;margin:0 0 22px}
.err{padding:9px 12px;margin-bottom:16px;background:rgba(248,113,113,.08);
  border:1px solid rgba(248,113,113,.2);border-radius:8px;font-size:13px;color:#f87171}
label{display:block;font-size:13px;color:#8b8a97;margin:12px 0 5px}
input{width:100%;box-sizing:border-box;padding:10px 12px;background:#12141d;
  border:1px solid #252836;border-radius:8px;color:#e8e6f0;font-size:14px;outline:none}
button{width:100%;padding:11px;margin-top:18px;background:#6c5ce7;color:#fff;
  border:none;border-radius:9px;font-size:14px;font-weight:600;cursor:pointer}
</style>
</head>
<body>
<form class="card" method="POST" action="/login">
  <h1>FloatChat</h1>
  {{if .Error}}<div class="err">{{.Error}}</div>{{end}}
  <label for="username">Username</label>
  <input id="username" name="username" type="text" autocomplete="username" required autofocus>
  <label for="password">Password</label>
  <input id="password" name="password" type="password" autocomplete="current-password" required>
  <button type="submit">Sign in</button>
</form>
</body>
</html>`))

var widgetPageTmpl = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.Title}}</title>
<style>
:root{--accent:#6c5ce7;--bg:#161822;--bg2:#1c1f2e;--border:#252836;
  --text:#e8e6f0;--muted:#8b8a97;--error:#f87171}
body{margin:0;font-family:system-ui,-apple-system,sans-serif;background:#0f1117;color:var(--text)}
#fc-bubble{position:fixed;bottom:20px;width:56px;height:56px;border-radius:50%;
  background:var(--accent);color:#fff;border:none;cursor:pointer;font-size:24px;
  box-shadow:0 4px 16px rgba(0,0,0,.35);z-index:9999}
#fc-panel{position:fixed;bottom:90px;display:none;flex-direction:column;
  background:var(--bg);border:1px solid var(--border);border-radius:14px;
  box-shadow:0 8px 32px rgba(0,0,0,.45);overflow:hidden;z-index:9998;resize:none}
#fc-header{padding:13px 16px;background:var(--bg2);font-weight:600;font-size:15px;
  border-bottom:1px solid var(--border);user-select:none}
#fc-msgs{flex:1;overflow-y:auto;padding:14px;display:flex;flex-direction:column;gap:10px}
.fc-msg{max-width:80%;padding:9px 13px;border-radius:12px;font-size:14px;
  line-height:1.55;white-space:pre-wrap;word-wrap:break-word}
.fc-msg.user{align-self:flex-end;background:var(--accent);color:#fff}
.fc-msg.bot{align-self:flex-start;background:var(--bg2);border:1px solid var(--border)}
.fc-msg code{background:#0d0f18;padding:1px 5px;border-radius:4px;font-size:13px}
.fc-msg pre{background:#0d0f18;padding:10px 12px;border-radius:7px;overflow-x:auto;margin:6px 0}
#fc-notice{display:none;margin:0 14px 6px;padding:7px 11px;font-size:12px;color:var(--error);
  background:rgba(248,113,113,.08);border:1px solid rgba(248,113,113,.2);border-radius:7px}
#fc-preview{display:none;margin:0 14px 6px;font-size:12px;color:var(--muted)}
.fc-prow{display:flex;align-items:center;gap:6px;padding:2px 0}
.fc-prow button{background:none;border:none;color:var(--error);cursor:pointer;font-size:12px}
#fc-typing{display:none;padding:0 16px 6px;font-size:12px;color:var(--muted)}
#fc-inputrow{display:flex;gap:8px;padding:10px 12px;border-top:1px solid var(--border)}
#fc-input{flex:1;padding:9px 12px;background:#12141d;border:1px solid var(--border);
  border-radius:9px;color:var(--text);font-size:14px;outline:none}
#fc-attach{background:none;border:1px solid var(--border);border-radius:8px;color:var(--muted);
  cursor:pointer;padding:0 10px}
#fc-send{background:var(--accent);color:#fff;border:none;border-radius:9px;
  padding:0 16px;cursor:pointer;font-size:14px}
.fc-handle{position:absolute;z-index:10000}
</style>
</head>
<body>
<button id="fc-bubble" aria-label="Toggle chat">💬</button>
<div id="fc-panel">
  <div id="fc-header"></div>
  <div id="fc-msgs"></div>
  <div id="fc-typing">typing...</div>
  <div id="fc-notice"></div>
  <div id="fc-preview"></div>
  <div id="fc-inputrow">
    <button id="fc-attach" aria-label="Attach files">📎</button>
    <input id="fc-input" type="text" autocomplete="off">
    <button id="fc-send">Send</button>
  </div>
  <input id="fc-file" type="file" multiple hidden>
</div>
<script>
(function(){
const cfg={{.Config}};
const bubble=document.getElementById("fc-bubble"),
      panel=document.getElementById("fc-panel"),
      header=document.getElementById("fc-header"),
      msgs=document.getElementById("fc-msgs"),
      typing=document.getElementById("fc-typing"),
      notice=document.getElementById("fc-notice"),
      preview=document.getElementById("fc-preview"),
      input=document.getElementById("fc-input"),
      sendBtn=document.getElementById("fc-send"),
      attachBtn=document.getElementById("fc-attach"),
      fileInput=document.getElementById("fc-file");

document.documentElement.style.setProperty("--accent",cfg.themeColor);
header.textContent=cfg.title;
input.placeholder=cfg.placeholder;
const side=cfg.position==="bottom-left"?"left":"right";
bubble.style[side]="20px";
panel.style[side]="20px";
panel.style.width=cfg.width+"px";
panel.style.height=cfg.height+"px";
panel.style.transition="opacity "+cfg.animationDuration+"ms";
if(!cfg.enableFileUpload)attachBtn.style.display="none";

let sessionId=localStorage.getItem("fc-session");
if(!sessionId){
  sessionId=crypto.randomUUID();
  localStorage.setItem("fc-session",sessionId);
}

let open=false,pending=[],noticeTimer=null;

function esc(s){return s.replace(/&/g,"&amp;").replace(/</g,"&lt;").replace(/>/g,"&gt;")}
function md(raw){
  let t=esc(raw);
  t=t.replace(/` + "```" + `\w*\n([\s\S]*?)` + "```" + `/g,function(_,c){return "<pre><code>"+c.trim()+"</code></pre>"});
  t=t.replace(/` + "`([^`]+)`" + `/g,"<code>$1</code>");
  t=t.replace(/\*\*(.+?)\*\*/g,"<strong>$1</strong>");
  return t;
}

function showNotice(text){
  notice.textContent=text;notice.style.display="block";
  clearTimeout(noticeTimer);
  noticeTimer=setTimeout(function(){notice.style.display="none"},5000);
}

function addMsg(role,content,animate){
  const el=document.createElement("div");
  el.className="fc-msg "+role;
  if(role==="bot"&&animate&&cfg.typingSpeed>0){
    let i=0;
    const tick=setInterval(function(){
      i++;el.textContent=content.slice(0,i);
      msgs.scrollTop=msgs.scrollHeight;
      if(i>=content.length){clearInterval(tick);el.innerHTML=md(content)}
    },cfg.typingSpeed);
  }else if(role==="bot"){
    el.innerHTML=md(content);
  }else{
    el.textContent=content;
  }
  msgs.appendChild(el);
  msgs.scrollTop=msgs.scrollHeight;
}

function setOpen(v){
  open=v;
  panel.style.display=v?"flex":"none";
  if(v)input.focus();
}
bubble.onclick=function(){setOpen(!open)};
if(cfg.welcomeMessage)addMsg("bot",cfg.welcomeMessage,false);

// --- attachments -----------------------------------------------------
function humanSize(n){
  if(n<1024)return n+" Bytes";
  const units=["KB","MB","GB"];let v=n;
  for(let i=0;i<units.length;i++){v=v/1024;if(v<1024||i===units.length-1)return v.toFixed(2)+" "+units[i]}
}
function typeAllowed(f){
  if(!cfg.allowedFileTypes||cfg.allowedFileTypes.length===0)return true;
  return cfg.allowedFileTypes.some(function(p){
    if(p.startsWith("."))return f.name.toLowerCase().endsWith(p.toLowerCase());
    if(p.endsWith("/*"))return f.type.startsWith(p.slice(0,-1));
    return f.type===p;
  });
}
function renderPreview(){
  preview.innerHTML="";
  if(pending.length===0){preview.style.display="none";fileInput.value="";return}
  preview.style.display="block";
  pending.forEach(function(f,i){
    const row=document.createElement("div");row.className="fc-prow";
    const name=document.createElement("span");name.textContent="📎 "+f.name+" ("+humanSize(f.size)+")";
    const rm=document.createElement("button");rm.textContent="✕";
    rm.onclick=function(){pending.splice(i,1);renderPreview()};
    row.appendChild(name);row.appendChild(rm);preview.appendChild(row);
  });
}
attachBtn.onclick=function(){fileInput.click()};
fileInput.onchange=function(){
  pending=[];
  Array.from(fileInput.files).forEach(function(f){
    if(cfg.maxFileSize>0&&f.size>cfg.maxFileSize){
      showNotice(f.name+": file too large (limit "+humanSize(cfg.maxFileSize)+")");return;
    }
    if(!typeAllowed(f)){showNotice(f.name+": file type not allowed");return}
    pending.push(f);
  });
  renderPreview();
};

function encodeFile(f){
  return new Promise(function(resolve,reject){
    const r=new FileReader();
    r.onload=function(){
      resolve({
        fileName:f.name,
        fileSize:f.size+" bytes",
        fileExtension:f.name.includes(".")?f.name.split(".").pop():"",
        fileType:f.type?f.type.split("/")[0]:"application",
        mimeType:f.type,
        data:r.result
      });
    };
    r.onerror=function(){reject(new Error(f.name))};
    r.readAsDataURL(f);
  });
}

// --- submission ------------------------------------------------------
let busy=false;
async function send(){
  const text=input.value.trim();
  if(busy)return;
  if(cfg.maxMessageLength>0&&text.length>cfg.maxMessageLength){
    showNotice("Message too long ("+text.length+"/"+cfg.maxMessageLength+")");return;
  }
  if(!text&&pending.length===0)return;

  let files=[];
  if(pending.length>0){
    try{files=await Promise.all(pending.map(encodeFile))}
    catch(e){showNotice("Could not read attachment: "+e.message);return}
  }

  busy=true;
  addMsg("user",text||"📎 "+pending.map(function(f){return f.name}).join(", "));
  input.value="";pending=[];renderPreview();
  typing.style.display="block";
  try{
    const r=await fetch("/widget/send",{
      method:"POST",
      headers:{"Content-Type":"application/json"},
      body:JSON.stringify({sessionId:sessionId,action:"sendMessage",chatInput:text,files:files})
    });
    typing.style.display="none";
    if(r.status===401){window.location.href="/login";return}
    if(!r.ok)throw new Error("status "+r.status);
    const d=await r.json();
    addMsg("bot",d.reply||"",true);
  }catch(e){
    typing.style.display="none";
    showNotice("Network error: "+e.message);
    addMsg("bot","Sorry, something went wrong. Please try again.");
  }
  busy=false;input.focus();
}
sendBtn.onclick=send;
input.onkeydown=function(e){if(e.key==="Enter")send()};

// --- live events -----------------------------------------------------
try{
  const ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/widget/events");
  ws.onmessage=function(ev){
    const d=JSON.parse(ev.data);
    if(d.type==="message"&&d.role==="bot")addMsg("bot",d.content,true);
    if(d.type==="pending")typing.style.display=d.active?"block":"none";
  };
}catch(e){/* live updates are best-effort */}

// --- resize ----------------------------------------------------------
if(cfg.resizable){
  const dirs=["n","s","e","w","ne","nw","se","sw"];
  const CORNER=12,EDGE=6;
  let session=null;

  dirs.forEach(function(dir){
    const h=document.createElement("div");
    h.className="fc-handle";
    h.style.cursor=dir+"-resize";
    position(h,dir);
    h.addEventListener("pointerdown",function(e){
      e.preventDefault();e.stopPropagation();
      const box=panel.getBoundingClientRect();
      session={
        dir:dir,
        startX:e.clientX,startY:e.clientY,
        startW:box.width,startH:box.height,
        startL:box.left,startR:window.innerWidth-box.right
      };
      document.body.style.userSelect="none";
      document.body.style.cursor=dir+"-resize";
    });
    panel.appendChild(h);
  });

  function position(h,dir){
    if(dir.length===2){
      h.style.width=CORNER+"px";h.style.height=CORNER+"px";
      h.style[dir[0]==="n"?"top":"bottom"]="0";
      h.style[dir[1]==="e"?"right":"left"]="0";
    }else if(dir==="n"||dir==="s"){
      h.style.height=EDGE+"px";h.style.left=CORNER+"px";h.style.right=CORNER+"px";
      h.style[dir==="n"?"top":"bottom"]="0";
    }else{
      h.style.width=EDGE+"px";h.style.top=CORNER+"px";h.style.bottom=CORNER+"px";
      h.style[dir==="w"?"left":"right"]="0";
    }
  }

  window.addEventListener("pointermove",function(e){
    if(!session)return;
    const dx=e.clientX-session.startX,dy=e.clientY-session.startY;
    let w=session.startW,h=session.startH;
    if(session.dir.includes("n"))h-=dy;
    if(session.dir.includes("s"))h+=dy;
    if(session.dir.includes("e"))w+=dx;
    if(session.dir.includes("w"))w-=dx;
    w=Math.min(Math.max(w,cfg.minWidth),cfg.maxWidth);
    h=Math.min(Math.max(h,cfg.minHeight),cfg.maxHeight);
    panel.style.width=w+"px";
    panel.style.height=h+"px";
    const grown=w-session.startW;
    if(session.dir.includes("e")){
      if(side==="right")panel.style.right=(session.startR-grown)+"px";
    }else if(session.dir.includes("w")){
      if(side==="left")panel.style.left=(session.startL-grown)+"px";
    }
  });
  window.addEventListener("pointerup",function(){
    session=null;
    document.body.style.userSelect="";
    document.body.style.cursor="";
  });
}
})();
</script>
</body>
</html>`))
